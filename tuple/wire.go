// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tuple

import (
	"encoding/binary"

	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/serialize"
)

// nullMaskWidth is the fixed 4-byte null-mask width spec.md §4.2/§6 puts
// at the front of every serialized tuple, good for up to 32 columns.
const nullMaskWidth = 4

// WriteDefault serializes t's visible columns only: a 4-byte null mask
// followed by each non-null column's wire form (fixed-width values
// written directly, variable-length values as a 4-byte length prefix plus
// bytes). This is the form used for client-facing result rows and most
// intra-cluster traffic (spec.md §6).
func (t *Tuple) WriteDefault(w serialize.Writer) error {
	return t.writeColumns(w, t.schema.Columns())
}

// WriteFull serializes visible columns followed by hidden columns, each
// section with its own null mask. Used for the DR/export and snapshot
// paths that must carry hidden bookkeeping columns (spec.md §6).
func (t *Tuple) WriteFull(w serialize.Writer) error {
	if err := t.writeColumns(w, t.schema.Columns()); err != nil {
		return err
	}
	hidden := make([]schema.Column, t.schema.HiddenColumnCount())
	for i := range hidden {
		hidden[i] = t.schema.HiddenColumn(i)
	}
	return t.writeColumns(w, hidden)
}

func (t *Tuple) writeColumns(w serialize.Writer, cols []schema.Column) error {
	if len(cols) > nullMaskWidth*8 {
		return corerr.New(corerr.KindFatal, "tuple has %d columns, exceeds %d-bit null mask", len(cols), nullMaskWidth*8)
	}
	var mask uint32
	values := make([]Value, len(cols))
	for i, c := range cols {
		idx := t.columnIndexOf(c)
		v, err := t.Get(idx)
		if err != nil {
			return err
		}
		values[i] = v
		if v.Null {
			mask |= 1 << uint(i)
		}
	}
	if err := w.WriteInt(int32(mask)); err != nil {
		return err
	}
	for i, c := range cols {
		if values[i].Null {
			continue
		}
		if err := writeValue(w, c, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// columnIndexOf maps a Column back to the positional index Get/Set
// expect, by name within the schema's visible slice. It returns -1 for a
// column that is not visible (a hidden column), since Get/Set are
// addressed purely by visible-column index.
func (t *Tuple) columnIndexOf(c schema.Column) int {
	for i, vc := range t.schema.Columns() {
		if vc.Name == c.Name {
			return i
		}
	}
	return -1
}

func writeValue(w serialize.Writer, c schema.Column, v Value) error {
	switch {
	case c.Type.IsInteger():
		return writeIntColumn(w, c.Type, v.Int)
	case c.Type == schema.Float:
		return w.WriteDouble(v.Float)
	case c.Type == schema.Boolean:
		return w.WriteBool(v.Bool)
	case c.Type == schema.Varchar:
		return w.WriteTextString(string(v.Bytes), false)
	case c.Type == schema.Varbinary:
		return w.WriteBinaryString(v.Bytes, false)
	case c.Type == schema.GeographyPoint:
		if err := w.WriteDouble(v.GeoPoint[0]); err != nil {
			return err
		}
		return w.WriteDouble(v.GeoPoint[1])
	case c.Type == schema.GeographyPolygon:
		return w.WriteBinaryString(v.GeoPoly, false)
	default:
		return corerr.Fatal("tuple: unhandled column type %v on write", c.Type)
	}
}

func writeIntColumn(w serialize.Writer, t schema.ColumnType, v int64) error {
	switch t {
	case schema.TinyInt:
		return w.WriteByte(byte(int8(v)))
	case schema.SmallInt:
		return w.WriteShort(int16(v))
	case schema.Integer:
		return w.WriteInt(int32(v))
	case schema.BigInt, schema.Timestamp:
		return w.WriteLong(v)
	default:
		return corerr.Fatal("tuple: unhandled integer column type %v", t)
	}
}

// ReadDefault decodes a tuple's visible columns from r into a freshly
// allocated inline buffer sized by s.InlineLength(false), attaching pool
// for any non-inlined variable-length columns. The returned Tuple owns
// its inline bytes (unlike New, which borrows them) since there is no
// block slot to borrow from on a standalone decode path such as a
// network-received row.
func ReadDefault(r *serialize.Reader, s *schema.Schema, pool Pool) (*Tuple, error) {
	return readColumns(r, s, pool, s.Columns(), false)
}

// ReadFull decodes visible columns followed by hidden columns, the dual
// of WriteFull.
func ReadFull(r *serialize.Reader, s *schema.Schema, pool Pool) (*Tuple, error) {
	t, err := readColumns(r, s, pool, s.Columns(), true)
	if err != nil {
		return nil, err
	}
	hidden := make([]schema.Column, s.HiddenColumnCount())
	for i := range hidden {
		hidden[i] = s.HiddenColumn(i)
	}
	mask, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	for i, c := range hidden {
		if uint32(mask)&(1<<uint(i)) != 0 {
			continue
		}
		v, err := readValue(r, c)
		if err != nil {
			return nil, err
		}
		if err := t.setHidden(i, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readColumns(r *serialize.Reader, s *schema.Schema, pool Pool, cols []schema.Column, includeHidden bool) (*Tuple, error) {
	mask, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	t := New(make([]byte, s.InlineLength(includeHidden)), s, pool)
	t.SetActive(true)
	for i, c := range cols {
		idx := t.columnIndexOf(c)
		if uint32(mask)&(1<<uint(i)) != 0 {
			if err := t.Set(idx, NullValue()); err != nil {
				return nil, err
			}
			continue
		}
		v, err := readValue(r, c)
		if err != nil {
			return nil, err
		}
		if err := t.Set(idx, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readValue(r *serialize.Reader, c schema.Column) (Value, error) {
	switch {
	case c.Type.IsInteger():
		return readIntColumn(r, c.Type)
	case c.Type == schema.Float:
		d, err := r.ReadDouble()
		return FloatValue(d), err
	case c.Type == schema.Boolean:
		b, err := r.ReadBool()
		return BoolValue(b), err
	case c.Type == schema.Varchar:
		s, _, err := r.ReadTextString()
		return BytesValue([]byte(s)), err
	case c.Type == schema.Varbinary:
		b, _, err := r.ReadBinaryString()
		return BytesValue(b), err
	case c.Type == schema.GeographyPoint:
		lat, err := r.ReadDouble()
		if err != nil {
			return Value{}, err
		}
		lng, err := r.ReadDouble()
		return Value{GeoPoint: [2]float64{lat, lng}}, err
	case c.Type == schema.GeographyPolygon:
		b, _, err := r.ReadBinaryString()
		return Value{GeoPoly: b}, err
	default:
		return Value{}, corerr.Fatal("tuple: unhandled column type %v on read", c.Type)
	}
}

func readIntColumn(r *serialize.Reader, t schema.ColumnType) (Value, error) {
	switch t {
	case schema.TinyInt:
		b, err := r.ReadByte()
		return IntValue(int64(int8(b))), err
	case schema.SmallInt:
		v, err := r.ReadShort()
		return IntValue(int64(v)), err
	case schema.Integer:
		v, err := r.ReadInt()
		return IntValue(int64(v)), err
	case schema.BigInt, schema.Timestamp:
		v, err := r.ReadLong()
		return IntValue(v), err
	default:
		return Value{}, corerr.Fatal("tuple: unhandled integer column type %v", t)
	}
}

// setHidden writes a decoded value into hidden column i. Hidden columns
// sit past the visible region in the inline buffer and are addressed
// directly since Get/Set only index the visible slice.
func (t *Tuple) setHidden(i int, v Value) error {
	col := t.schema.HiddenColumn(i)
	off := t.schema.InlineLength(false)
	for j := 0; j < i; j++ {
		off += t.schema.HiddenColumn(j).InlineWidth()
	}
	c := columnAccess{col: col, raw: t.bytes[off : off+col.InlineWidth()]}
	if v.Null {
		return t.setNull(-1, c)
	}
	return writeColumnInline(c, v)
}

func writeColumnInline(c columnAccess, v Value) error {
	switch {
	case c.col.Type.IsInteger():
		writeSignedInt(c.raw, c.col.Type, v.Int)
	case c.col.Type == schema.Float:
		binary.BigEndian.PutUint64(c.raw, float64bits(v.Float))
	case c.col.Type == schema.Boolean:
		if v.Bool {
			c.raw[0] = 1
		} else {
			c.raw[0] = 0
		}
	default:
		return corerr.New(corerr.KindFatal, "hidden column type %v unsupported for inline write", c.col.Type)
	}
	return nil
}
