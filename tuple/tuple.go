// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tuple implements the in-memory tuple representation: a header
// byte plus packed column values over a schema, as described in spec.md
// §3 and §4.2.
package tuple

import (
	"encoding/binary"
	"unsafe"

	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/schema"
)

// Header bit flags, packed into the tuple's single header byte.
const (
	FlagActive byte = 1 << iota
	FlagDirty
	FlagPendingDelete
	FlagPendingDeleteOnUndoRelease
)

// Pool allocates and owns out-of-line storage for non-inlined columns.
// Implementations are exclusive to one table, per spec.md §5's
// shared-resource policy; Ref values from one Pool must never be passed
// to another.
type Pool interface {
	// Alloc reserves n bytes and returns a handle plus a slice the caller
	// may write into immediately.
	Alloc(n int) (Ref, []byte, error)
	// Bytes returns the bytes referenced by handle.
	Bytes(Ref) []byte
	// Free releases handle's storage.
	Free(Ref)
	// Dup deep-copies the bytes referenced by handle into a new
	// allocation, for Tuple.Copy.
	Dup(Ref) (Ref, error)
}

// Ref is an opaque, pool-scoped handle to out-of-line bytes. The zero Ref
// denotes "no reference" (used for a null non-inlined column's inline
// slot, redundant with the null mask bit but kept consistent with the
// wire format's belt-and-suspenders convention).
type Ref uint64

// Tuple is the pair (pointer-to-inline-bytes, schema) from spec.md §3.
// The inline bytes always begin with the one-byte header.
type Tuple struct {
	bytes  []byte
	schema *schema.Schema
	pool   Pool
}

// New constructs a Tuple over borrowed inline bytes (length
// schema.InlineLength(includeHidden)). The caller owns the backing memory
// (typically a table block slot or a scratch pool buffer).
func New(bytes []byte, s *schema.Schema, pool Pool) *Tuple {
	return &Tuple{bytes: bytes, schema: s, pool: pool}
}

// Schema returns the tuple's schema.
func (t *Tuple) Schema() *schema.Schema { return t.schema }

// HeaderByte returns the raw header byte.
func (t *Tuple) HeaderByte() byte { return t.bytes[0] }

func (t *Tuple) flag(mask byte) bool { return t.bytes[0]&mask != 0 }
func (t *Tuple) setFlag(mask byte, v bool) {
	if v {
		t.bytes[0] |= mask
	} else {
		t.bytes[0] &^= mask
	}
}

// IsActive reports whether the tuple is logically present. A tuple with
// active=0 is treated as logically absent even if its bytes are live in a
// block (spec.md §4.2 invariant).
func (t *Tuple) IsActive() bool { return t.flag(FlagActive) }

// SetActive sets the active flag.
func (t *Tuple) SetActive(v bool) { t.setFlag(FlagActive, v) }

// IsDirty reports whether the tuple has been mutated since last clean.
func (t *Tuple) IsDirty() bool { return t.flag(FlagDirty) }

// SetDirty sets the dirty flag.
func (t *Tuple) SetDirty(v bool) { t.setFlag(FlagDirty, v) }

// IsPendingDelete reports whether the tuple is pending delete. Pending
// delete forbids further mutation until undo resolution (spec.md §4.2).
func (t *Tuple) IsPendingDelete() bool { return t.flag(FlagPendingDelete) }

// SetPendingDelete sets the pending-delete flag.
func (t *Tuple) SetPendingDelete(v bool) { t.setFlag(FlagPendingDelete, v) }

// IsPendingDeleteOnUndoRelease reports the pending-delete-on-undo-release flag.
func (t *Tuple) IsPendingDeleteOnUndoRelease() bool {
	return t.flag(FlagPendingDeleteOnUndoRelease)
}

// SetPendingDeleteOnUndoRelease sets that flag.
func (t *Tuple) SetPendingDeleteOnUndoRelease(v bool) {
	t.setFlag(FlagPendingDeleteOnUndoRelease, v)
}

// Address returns a stable identity for this tuple's inline bytes, valid
// as long as the backing block slot is not reused. Go's non-moving GC
// means the address of a block-owned byte slice never changes underneath
// us, which is what makes this safe to use for equality/hashing; it must
// not be persisted across a compaction move (a table's key.RowPointer,
// which indexes rewrite on every move, identifies the row instead).
func (t *Tuple) Address() uintptr {
	return uintptr(unsafe.Pointer(&t.bytes[0]))
}

// Bytes returns the tuple's raw inline bytes, header included. Intended
// for a table's storage layer to copy a freshly decoded tuple's bytes
// directly into a block slot without going through Copy (which would
// needlessly Dup out-of-line references the tuple already owns). The
// returned slice aliases t's backing array; callers outside this
// tuple's owner must not retain it.
func (t *Tuple) Bytes() []byte { return t.bytes }

// Move re-points the tuple at different inline bytes without copying.
// Used when a table slot's backing block changes identity but the
// logical tuple does not (e.g. iterator repositioning).
func (t *Tuple) Move(bytes []byte) { t.bytes = bytes }

// columnOffset returns the inline byte offset of column i, accounting for
// the header and preceding columns' inline widths.
func (t *Tuple) columnOffset(i int) int {
	off := schema.HeaderSize
	cols := t.schema.Columns()
	for j := 0; j < i; j++ {
		off += cols[j].InlineWidth()
	}
	return off
}

// The in-memory tuple keeps no null bitmap; the wire format's 4-byte null
// mask (tuple/wire.go) is recomputed on serialize rather than stored.
//
// To keep the inline layout exactly InlineWidth()-sized as spec.md
// demands (no extra null bitmap bytes), nullability is tracked via
// sentinels only: Ref == 0 means null for non-inlined columns, and
// type-specific sentinels (see sentinelNull) mean null for inline
// columns. Nullable inline columns therefore reserve their sentinel value
// and cannot independently store it as genuine data, mirroring the
// original engine's NValue tagging rules.
func (c columnAccess) sentinelNull() bool {
	switch c.col.Type {
	case schema.TinyInt:
		return int8(c.raw[0]) == int8(-128)
	case schema.SmallInt:
		return int16(binary.BigEndian.Uint16(c.raw)) == -32768
	case schema.Integer, schema.Timestamp:
		if c.col.Type == schema.Timestamp {
			return int64(binary.BigEndian.Uint64(c.raw)) == minInt64Sentinel
		}
		return int32(binary.BigEndian.Uint32(c.raw)) == minInt32Sentinel
	case schema.BigInt:
		return int64(binary.BigEndian.Uint64(c.raw)) == minInt64Sentinel
	case schema.Float:
		return binary.BigEndian.Uint64(c.raw) == floatNullBits
	case schema.Boolean:
		return c.raw[0] == 2
	default:
		return false
	}
}

const (
	minInt32Sentinel = int32(-1) << 31
	minInt64Sentinel = int64(-1) << 63
	// floatNullBits is the original engine's NaN-coded null-double
	// sentinel bit pattern (a specific NaN distinct from any NaN produced
	// by arithmetic), preserved so the wire format's null-without-mask
	// fallback stays consistent with columns that are unioned with hidden
	// metadata.
	floatNullBits = uint64(0xFFF8000000000000)
)

type columnAccess struct {
	col schema.Column
	raw []byte // inline bytes for fixed-width, or the pointer slot for non-inlined
}

func (t *Tuple) column(i int) columnAccess {
	col := t.schema.Column(i)
	off := t.columnOffset(i)
	return columnAccess{col: col, raw: t.bytes[off : off+col.InlineWidth()]}
}

// IsNull reports whether column i is null.
func (t *Tuple) IsNull(i int) bool {
	c := t.column(i)
	if c.col.Type.IsVariableLength() && !c.col.Inline {
		return Ref(binary.BigEndian.Uint64(c.raw)) == 0
	}
	if c.col.Type.IsVariableLength() && c.col.Inline {
		return int32(binary.BigEndian.Uint32(c.raw)) == -1
	}
	return c.sentinelNull()
}

// Get returns column i's value.
func (t *Tuple) Get(i int) (Value, error) {
	if t.IsNull(i) {
		return NullValue(), nil
	}
	c := t.column(i)
	switch {
	case c.col.Type.IsInteger():
		return IntValue(readSignedInt(c.raw, c.col.Type)), nil
	case c.col.Type == schema.Float:
		return FloatValue(float64fromBits(binary.BigEndian.Uint64(c.raw))), nil
	case c.col.Type == schema.Boolean:
		return BoolValue(c.raw[0] == 1), nil
	case c.col.Type == schema.Varchar, c.col.Type == schema.Varbinary:
		b, err := t.readVariableLength(c)
		if err != nil {
			return Value{}, err
		}
		return BytesValue(b), nil
	case c.col.Type == schema.GeographyPoint:
		lat := float64fromBits(binary.BigEndian.Uint64(c.raw[0:8]))
		lng := float64fromBits(binary.BigEndian.Uint64(c.raw[8:16]))
		return Value{GeoPoint: [2]float64{lat, lng}}, nil
	case c.col.Type == schema.GeographyPolygon:
		b, err := t.readVariableLength(c)
		if err != nil {
			return Value{}, err
		}
		return Value{GeoPoly: b}, nil
	default:
		return Value{}, corerr.Fatal("tuple: unhandled column type %v", c.col.Type)
	}
}

func (t *Tuple) readVariableLength(c columnAccess) ([]byte, error) {
	if c.col.Inline {
		length := int32(binary.BigEndian.Uint32(c.raw[0:4]))
		if int(length) > len(c.raw)-4 {
			return nil, corerr.New(corerr.KindInvalidMessage, "inline variable-length column declares %d bytes but slot holds %d", length, len(c.raw)-4)
		}
		return c.raw[4 : 4+length], nil
	}
	ref := Ref(binary.BigEndian.Uint64(c.raw))
	if t.pool == nil {
		return nil, corerr.Fatal("tuple: non-inlined column read with no pool attached")
	}
	return t.pool.Bytes(ref), nil
}

func readSignedInt(raw []byte, t schema.ColumnType) int64 {
	switch t {
	case schema.TinyInt:
		return int64(int8(raw[0]))
	case schema.SmallInt:
		return int64(int16(binary.BigEndian.Uint16(raw)))
	case schema.Integer:
		return int64(int32(binary.BigEndian.Uint32(raw)))
	case schema.BigInt, schema.Timestamp:
		return int64(binary.BigEndian.Uint64(raw))
	default:
		return 0
	}
}

func float64fromBits(bits uint64) float64 {
	return *(*float64)(unsafe.Pointer(&bits))
}

// Set writes v into column i. For non-inlined variable-length columns,
// any existing out-of-line allocation is freed and a new one made via the
// tuple's pool.
func (t *Tuple) Set(i int, v Value) error {
	c := t.column(i)
	if v.Null {
		return t.setNull(i, c)
	}
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
	case c.col.Type == schema.Varchar, c.col.Type == schema.Varbinary:
		return t.setVariableLength(i, c, v.Bytes)
	case c.col.Type == schema.GeographyPoint:
		binary.BigEndian.PutUint64(c.raw[0:8], float64bits(v.GeoPoint[0]))
		binary.BigEndian.PutUint64(c.raw[8:16], float64bits(v.GeoPoint[1]))
	case c.col.Type == schema.GeographyPolygon:
		return t.setVariableLength(i, c, v.GeoPoly)
	default:
		return corerr.Fatal("tuple: unhandled column type %v", c.col.Type)
	}
	return nil
}

func float64bits(f float64) uint64 { return *(*uint64)(unsafe.Pointer(&f)) }

func (t *Tuple) setNull(i int, c columnAccess) error {
	if !c.col.Nullable {
		return corerr.New(corerr.KindSQLException, "column %q is not nullable", c.col.Name)
	}
	switch {
	case c.col.Type.IsVariableLength() && !c.col.Inline:
		old := Ref(binary.BigEndian.Uint64(c.raw))
		if old != 0 && t.pool != nil {
			t.pool.Free(old)
		}
		binary.BigEndian.PutUint64(c.raw, 0)
	case c.col.Type.IsVariableLength() && c.col.Inline:
		binary.BigEndian.PutUint32(c.raw[0:4], uint32(int32(-1)))
	case c.col.Type == schema.TinyInt:
		c.raw[0] = byte(int8(-128))
	case c.col.Type == schema.SmallInt:
		binary.BigEndian.PutUint16(c.raw, uint16(int16(-32768)))
	case c.col.Type == schema.Integer:
		binary.BigEndian.PutUint32(c.raw, uint32(minInt32Sentinel))
	case c.col.Type == schema.BigInt || c.col.Type == schema.Timestamp:
		binary.BigEndian.PutUint64(c.raw, uint64(minInt64Sentinel))
	case c.col.Type == schema.Float:
		binary.BigEndian.PutUint64(c.raw, floatNullBits)
	case c.col.Type == schema.Boolean:
		c.raw[0] = 2
	default:
		return corerr.Fatal("tuple: cannot null column type %v", c.col.Type)
	}
	return nil
}

func (t *Tuple) setVariableLength(i int, c columnAccess, data []byte) error {
	if c.col.Inline {
		if len(data) > len(c.raw)-4 {
			return corerr.New(corerr.KindSQLException, "value for %q exceeds inline column width", c.col.Name)
		}
		binary.BigEndian.PutUint32(c.raw[0:4], uint32(int32(len(data))))
		copy(c.raw[4:], data)
		return nil
	}
	if t.pool == nil {
		return corerr.Fatal("tuple: non-inlined column set with no pool attached")
	}
	old := Ref(binary.BigEndian.Uint64(c.raw))
	if old != 0 {
		t.pool.Free(old)
	}
	ref, dst, err := t.pool.Alloc(len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	binary.BigEndian.PutUint64(c.raw, uint64(ref))
	return nil
}

func writeSignedInt(raw []byte, t schema.ColumnType, v int64) {
	switch t {
	case schema.TinyInt:
		raw[0] = byte(int8(v))
	case schema.SmallInt:
		binary.BigEndian.PutUint16(raw, uint16(int16(v)))
	case schema.Integer:
		binary.BigEndian.PutUint32(raw, uint32(int32(v)))
	case schema.BigInt, schema.Timestamp:
		binary.BigEndian.PutUint64(raw, uint64(v))
	}
}

// Copy deep-copies src's inline bytes and any required out-of-line copies
// into t. t and src must share the same schema.
func (t *Tuple) Copy(src *Tuple) error {
	copy(t.bytes, src.bytes)
	for i := 0; i < t.schema.ColumnCount(); i++ {
		col := t.schema.Column(i)
		if !col.Type.IsVariableLength() || col.Inline {
			continue
		}
		off := t.columnOffset(i)
		srcRef := Ref(binary.BigEndian.Uint64(src.bytes[off : off+8]))
		if srcRef == 0 {
			binary.BigEndian.PutUint64(t.bytes[off:off+8], 0)
			continue
		}
		if t.pool == nil {
			return corerr.Fatal("tuple: copy of non-inlined column with no destination pool")
		}
		var newRef Ref
		var err error
		if src.pool == t.pool {
			newRef, err = t.pool.Dup(srcRef)
		} else {
			if src.pool == nil {
				return corerr.Fatal("tuple: copy of non-inlined column with no source pool")
			}
			srcBytes := src.pool.Bytes(srcRef)
			var dst []byte
			newRef, dst, err = t.pool.Alloc(len(srcBytes))
			if err == nil {
				copy(dst, srcBytes)
			}
		}
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint64(t.bytes[off:off+8], uint64(newRef))
	}
	return nil
}

// Equal reports whether t and other have identical column values under
// the schema's comparator. Both tuples must share the same schema.
func (t *Tuple) Equal(other *Tuple) (bool, error) {
	for i := 0; i < t.schema.ColumnCount(); i++ {
		a, err := t.Get(i)
		if err != nil {
			return false, err
		}
		b, err := other.Get(i)
		if err != nil {
			return false, err
		}
		if !a.Equal(b, t.schema.Column(i).Type) {
			return false, nil
		}
	}
	return true, nil
}

// Destroy clears the tuple's header and returns its out-of-line
// references to the allocator, per spec.md §3's lifecycle: "destroyed by
// clearing its header and returning its out-of-line references to the
// allocator."
func (t *Tuple) Destroy() {
	for i := 0; i < t.schema.ColumnCount(); i++ {
		col := t.schema.Column(i)
		if col.Type.IsVariableLength() && !col.Inline {
			off := t.columnOffset(i)
			ref := Ref(binary.BigEndian.Uint64(t.bytes[off : off+8]))
			if ref != 0 && t.pool != nil {
				t.pool.Free(ref)
			}
		}
	}
	t.bytes[0] = 0
}
