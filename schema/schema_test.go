// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ordersSchema() *Schema {
	return New(
		Column{Name: "id", Type: Integer, Inline: true},
		Column{Name: "name", Type: Varchar, DeclaredLength: 32, Inline: true, Nullable: true},
		Column{Name: "total", Type: Float, Inline: true},
	)
}

func TestTupleLengthSumsInlineWidths(t *testing.T) {
	s := ordersSchema()
	require.Equal(t, 4+32+8, s.TupleLength())
	require.Equal(t, HeaderSize+4+32+8, s.InlineLength(false))
}

func TestMaxSerializedTupleSizeAdjustsVariableLength(t *testing.T) {
	s := ordersSchema()
	// name is inline (32 bytes) but the wire form uses a 4-byte length
	// prefix instead of the 8-byte pointer slot it would use if
	// non-inlined; per the formula the adjustment is (4 - pointerSlot)
	// regardless of inline-ness, plus DeclaredLength only when non-inline.
	got := s.MaxSerializedTupleSize(false)
	want := 4 + s.TupleLength() + (4 - pointerSlotWidth)
	require.Equal(t, want, got)
}

func TestMaxSerializedTupleSizeNonInlineColumn(t *testing.T) {
	s := New(
		Column{Name: "id", Type: Integer, Inline: true},
		Column{Name: "blob", Type: Varbinary, DeclaredLength: 4096, Inline: false},
	)
	got := s.MaxSerializedTupleSize(false)
	want := 4 + s.TupleLength() + (4 - pointerSlotWidth) + 4096
	require.Equal(t, want, got)
}

func TestHiddenColumnsExcludedByDefault(t *testing.T) {
	s := ordersSchema().WithHidden(Column{Name: "migrate_txn_timestamp", Type: BigInt, Inline: true})
	require.Equal(t, 3, s.ColumnCount())
	require.Equal(t, 1, s.HiddenColumnCount())
	require.Equal(t, s.InlineLength(false)+8, s.InlineLength(true))
}

func TestColumnIndexLookup(t *testing.T) {
	s := ordersSchema()
	require.Equal(t, 1, s.ColumnIndex("name"))
	require.Equal(t, -1, s.ColumnIndex("missing"))
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	s := New(Column{Name: "id", Type: Integer}, Column{Name: "id", Type: BigInt})
	require.Error(t, s.Validate())
}
