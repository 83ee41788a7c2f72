// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/serialize"
	"github.com/partitiondb/core/tuple"
)

// tableHeaderStatus is the fixed status byte spec.md §4.6's column
// header carries, mirroring the original wire format's sentinel value.
const tableHeaderStatus = int8(-128)

func newScratchWriter(capacityHint int) *serialize.CopyWriter {
	return serialize.NewCopyWriter(capacityHint)
}

// wireColumns returns the column descriptors written to (and expected
// from) the wire: visible columns, plus hidden columns when
// includeHidden is set.
func (tb *Table) wireColumns() []schema.Column {
	cols := append([]schema.Column(nil), tb.schema.Columns()...)
	if tb.includeHidden {
		for i := 0; i < tb.schema.HiddenColumnCount(); i++ {
			cols = append(cols, tb.schema.HiddenColumn(i))
		}
	}
	return cols
}

func patchInt32(w serialize.Writer, offset int, v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return w.WriteBytesAt(offset, b[:])
}

// SerializeTo writes the table to w per spec.md §4.6: a 4-byte total
// size, the column header (cacheable; this implementation always
// recomputes it, since a Table has no mutable-schema path that would
// need the invalidation spec.md mentions), the tuple count, then each
// active tuple.
func (tb *Table) SerializeTo(w serialize.Writer) error {
	totalOff, err := w.ReserveBytes(4)
	if err != nil {
		return err
	}

	headerLenOff, err := w.ReserveBytes(4)
	if err != nil {
		return err
	}
	headerStart := w.Len()

	if err := w.WriteByte(byte(tableHeaderStatus)); err != nil {
		return err
	}
	cols := tb.wireColumns()
	if err := w.WriteShort(int16(len(cols))); err != nil {
		return err
	}
	for _, c := range cols {
		if err := w.WriteByte(byte(c.Type)); err != nil {
			return err
		}
	}
	for _, c := range cols {
		if err := w.WriteInt(int32(len(c.Name))); err != nil {
			return err
		}
		if err := w.WriteRawBytes([]byte(c.Name)); err != nil {
			return err
		}
	}
	if err := patchInt32(w, headerLenOff, int32(w.Len()-headerStart)); err != nil {
		return err
	}

	if err := w.WriteInt(int32(tb.activeCount)); err != nil {
		return err
	}
	var writeErr error
	tb.All(func(_ key.RowPointer, t *tuple.Tuple) bool {
		if tb.includeHidden {
			writeErr = t.WriteFull(w)
		} else {
			writeErr = t.WriteDefault(w)
		}
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}

	return patchInt32(w, totalOff, int32(w.Len()-totalOff-4))
}

// DeserializeTable mirrors SerializeTo: it reads the total size, the
// column header (validated against expected's column count, failing
// KindSchemaMismatch on mismatch per spec.md §4.6), the tuple count,
// then each tuple, inserting it into a fresh table built over expected.
func DeserializeTable(r *serialize.Reader, expected *schema.Schema, compactionThreshold int, includeHidden bool) (*Table, error) {
	if _, err := r.ReadInt(); err != nil { // total size, framing only
		return nil, err
	}
	if _, err := r.ReadInt(); err != nil { // header size, framing only
		return nil, err
	}

	status, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if int8(status) != tableHeaderStatus {
		return nil, corerr.New(corerr.KindInvalidMessage, "table header: unexpected status byte %d", int8(status))
	}

	colCount, err := r.ReadShort()
	if err != nil {
		return nil, err
	}
	wantCount := expected.ColumnCount()
	if includeHidden {
		wantCount += expected.HiddenColumnCount()
	}
	if int(colCount) != wantCount {
		return nil, corerr.New(corerr.KindSchemaMismatch,
			"table deserialize: expected %d columns, received %d", wantCount, colCount)
	}
	for i := 0; i < int(colCount); i++ {
		if _, err := r.ReadByte(); err != nil { // column type, not re-validated per-column
			return nil, err
		}
	}
	for i := 0; i < int(colCount); i++ {
		nameLen, err := r.ReadInt()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadBytes(int(nameLen)); err != nil {
			return nil, err
		}
	}

	tb := NewTable(expected, compactionThreshold)
	tb.includeHidden = includeHidden

	tupleCount, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < tupleCount; i++ {
		var t *tuple.Tuple
		var err error
		if includeHidden {
			t, err = tuple.ReadFull(r, expected, tb.pool)
		} else {
			t, err = tuple.ReadDefault(r, expected, tb.pool)
		}
		if err != nil {
			return nil, err
		}
		if _, err := tb.adoptLocal(t); err != nil {
			return nil, err
		}
	}
	return tb, nil
}
