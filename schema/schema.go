// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package schema describes the column layout tuples are built over: an
// ordered list of visible column descriptors plus zero or more hidden
// columns used for internal bookkeeping (spec.md §3, §4.2).
package schema

import "github.com/partitiondb/core/internal/corerr"

// ColumnType identifies a column's physical representation.
type ColumnType byte

const (
	TinyInt ColumnType = iota
	SmallInt
	Integer
	BigInt
	Float // IEEE-754 double, named to match the wire protocol's "FLOAT" kind
	Boolean
	Timestamp
	Varchar
	Varbinary
	GeographyPoint
	GeographyPolygon
)

// FixedWidth reports the inline byte width of a fixed-width type, or 0 for
// variable-length types (Varchar/Varbinary/GeographyPolygon) whose inline
// representation is always a pointer slot.
func (t ColumnType) FixedWidth() int {
	switch t {
	case TinyInt:
		return 1
	case SmallInt:
		return 2
	case Integer:
		return 4
	case BigInt, Timestamp:
		return 8
	case Float:
		return 8
	case Boolean:
		return 1
	case GeographyPoint:
		return 16 // two float64 (lat, lng) packed inline
	default:
		return 0
	}
}

// IsVariableLength reports whether values of this type are stored
// out-of-line, with only a pointer-sized slot inline.
func (t ColumnType) IsVariableLength() bool {
	switch t {
	case Varchar, Varbinary, GeographyPolygon:
		return true
	default:
		return false
	}
}

// IsInteger reports whether the type participates in Ints-key packing
// (spec.md §4.4.1).
func (t ColumnType) IsInteger() bool {
	switch t {
	case TinyInt, SmallInt, Integer, BigInt, Timestamp:
		return true
	default:
		return false
	}
}

// pointerSlotWidth is the inline width of a non-inlined column's reference
// to its out-of-line storage.
const pointerSlotWidth = 8

// Column describes one column, visible or hidden.
type Column struct {
	Name string
	Type ColumnType
	// DeclaredLength is the column's declared byte length for
	// variable-length types (Varchar/Varbinary); LengthInBytes says
	// whether it's measured in bytes (true) or characters (false, legacy
	// VARCHAR(n) measured in UTF-8 characters).
	DeclaredLength int
	LengthInBytes  bool
	Nullable       bool
	// Inline reports whether the column's value lives inline in the
	// tuple's bytes. Fixed-width columns are always inline; a
	// variable-length column may be declared non-inline when its
	// declared length exceeds the table's inline threshold.
	Inline bool
}

// InlineWidth reports the number of bytes this column occupies inline:
// its fixed width for fixed-width types, the declared length for an
// inline variable-length column, or a pointer slot otherwise.
func (c Column) InlineWidth() int {
	if w := c.Type.FixedWidth(); w > 0 {
		return w
	}
	if c.Inline {
		return c.DeclaredLength
	}
	return pointerSlotWidth
}

// Schema is the ordered list of column descriptors a Tuple is built over,
// plus its hidden columns. Visible column order is stable once built.
type Schema struct {
	columns       []Column
	hiddenColumns []Column
}

// New builds a Schema from its visible columns, in order.
func New(columns ...Column) *Schema {
	return &Schema{columns: append([]Column(nil), columns...)}
}

// WithHidden returns a copy of s with the given hidden columns appended.
// Hidden columns are never part of ColumnCount/Column(i); only
// HiddenColumnCount/HiddenColumn(i) and the Full* serialization path see
// them.
func (s *Schema) WithHidden(hidden ...Column) *Schema {
	cp := &Schema{
		columns:       append([]Column(nil), s.columns...),
		hiddenColumns: append(append([]Column(nil), s.hiddenColumns...), hidden...),
	}
	return cp
}

// ColumnCount reports the number of visible columns.
func (s *Schema) ColumnCount() int { return len(s.columns) }

// Column returns the i'th visible column descriptor.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Columns returns the visible column descriptors in order. The returned
// slice must not be mutated by the caller.
func (s *Schema) Columns() []Column { return s.columns }

// HiddenColumnCount reports the number of hidden columns.
func (s *Schema) HiddenColumnCount() int { return len(s.hiddenColumns) }

// HiddenColumn returns the i'th hidden column descriptor.
func (s *Schema) HiddenColumn(i int) Column { return s.hiddenColumns[i] }

// ColumnIndex returns the position of the named visible column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HeaderSize is the fixed one-byte header every tuple's inline bytes begin
// with (spec.md §3).
const HeaderSize = 1

// TupleLength reports the inline payload size: the sum of inline column
// widths. It does not include the one-byte header.
func (s *Schema) TupleLength() int {
	total := 0
	for _, c := range s.columns {
		total += c.InlineWidth()
	}
	return total
}

func (s *Schema) tupleLengthHidden() int {
	total := 0
	for _, c := range s.hiddenColumns {
		total += c.InlineWidth()
	}
	return total
}

// InlineLength is TupleLength plus the one-byte header, optionally
// including hidden columns: this is the number of bytes a table must
// allocate per tuple slot.
func (s *Schema) InlineLength(includeHidden bool) int {
	total := HeaderSize + s.TupleLength()
	if includeHidden {
		total += s.tupleLengthHidden()
	}
	return total
}

// MaxSerializedTupleSize answers spec.md §4.2's formula: 4 bytes
// (null-mask) + tuple length + a per-non-inlined-column adjustment of (4
// bytes length prefix minus a pointer slot), since on the wire every
// variable-length column is written with its own 4-byte length prefix
// rather than the inline pointer slot the in-memory tuple uses.
func (s *Schema) MaxSerializedTupleSize(includeHidden bool) int {
	total := 4 + s.TupleLength()
	adjust := func(c Column) {
		if !c.Type.IsVariableLength() {
			return
		}
		total += 4 - pointerSlotWidth
		if !c.Inline {
			total += c.DeclaredLength
		}
	}
	for _, c := range s.columns {
		adjust(c)
	}
	if includeHidden {
		total += s.tupleLengthHidden()
		for _, c := range s.hiddenColumns {
			adjust(c)
		}
	}
	return total
}

// Validate checks internal consistency invariants a constructed Schema
// must satisfy.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		if seen[c.Name] {
			return corerr.New(corerr.KindFatal, "duplicate column name %q in schema", c.Name)
		}
		seen[c.Name] = true
		if c.Type.IsVariableLength() && c.DeclaredLength < 0 {
			return corerr.New(corerr.KindFatal, "column %q has negative declared length", c.Name)
		}
	}
	return nil
}
