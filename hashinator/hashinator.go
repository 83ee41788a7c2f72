// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package hashinator implements the consistent-hash partition router: an
// immutable, sorted ring of (token, partition) pairs that maps any scalar
// value to a partition id via MurmurHash3 (spec.md §4.3).
package hashinator

import (
	"encoding/binary"
	"sort"

	"github.com/partitiondb/core/internal/corerr"
	"github.com/spaolacci/murmur3"
)

// entry is one (token, partition) pair on the ring.
type entry struct {
	token     int32
	partition int32
}

// Ring is a sorted, immutable array of (token, partition) pairs. It never
// allocates after construction and is safe for concurrent reads from
// multiple engine goroutines, matching spec.md §5's "partition router and
// hash functions are immutable after construction and safe to share."
type Ring struct {
	entries []entry
}

// Decode parses a ring from spec.md §6's wire format: a 4-byte token
// count N, then N × (4-byte token, 4-byte partition id) in big-endian
// order, tokens ascending.
func Decode(b []byte) (*Ring, error) {
	if len(b) < 4 {
		return nil, corerr.New(corerr.KindInvalidMessage, "ring descriptor too short: %d bytes", len(b))
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n <= 0 {
		return nil, corerr.New(corerr.KindInvalidMessage, "ring descriptor declares non-positive token count %d", n)
	}
	want := 4 + int(n)*8
	if len(b) < want {
		return nil, corerr.New(corerr.KindInvalidMessage, "ring descriptor truncated: need %d bytes, have %d", want, len(b))
	}
	entries := make([]entry, n)
	off := 4
	for i := 0; i < int(n); i++ {
		tok := int32(binary.BigEndian.Uint32(b[off:]))
		part := int32(binary.BigEndian.Uint32(b[off+4:]))
		entries[i] = entry{token: tok, partition: part}
		off += 8
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].token < entries[j].token }) {
		return nil, corerr.New(corerr.KindInvalidMessage, "ring descriptor tokens are not sorted ascending")
	}
	return &Ring{entries: entries}, nil
}

// New builds a ring directly from ascending (token, partition) pairs,
// without going through the wire format. Used by callers that
// construct a ring programmatically (tests, or a control plane that
// hasn't serialized one yet).
func New(tokens, partitions []int32) (*Ring, error) {
	if len(tokens) != len(partitions) {
		return nil, corerr.New(corerr.KindInvalidMessage, "token/partition slice length mismatch: %d vs %d", len(tokens), len(partitions))
	}
	if len(tokens) == 0 {
		return nil, corerr.New(corerr.KindInvalidMessage, "ring must have at least one token")
	}
	entries := make([]entry, len(tokens))
	for i := range tokens {
		entries[i] = entry{token: tokens[i], partition: partitions[i]}
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].token < entries[j].token }) {
		return nil, corerr.New(corerr.KindInvalidMessage, "tokens are not sorted ascending")
	}
	return &Ring{entries: entries}, nil
}

// TokenCount reports the number of (token, partition) pairs on the ring.
func (r *Ring) TokenCount() int { return len(r.entries) }

// TokenAt returns the token and partition at position i, for diagnostics
// (enginectl's "ring describe").
func (r *Ring) TokenAt(i int) (token int32, partition int32) {
	e := r.entries[i]
	return e.token, e.partition
}

// PartitionForInt64 routes a 64-bit integer value, per spec.md §4.3 step
// 2: INT64_MIN maps to partition 0 (the engine's conventional "no
// partitioning key" sentinel); otherwise the value's 8 little-endian
// bytes are hashed with MurmurHash3 x64-128, taking the low 32 bits.
func (r *Ring) PartitionForInt64(v int64) int32 {
	if v == minInt64 {
		return 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return r.PartitionForHash(lowHash32(buf[:]))
}

// PartitionForBytes routes a string or byte-string value, per spec.md
// §4.3 step 3: MurmurHash3 x64-128 over the raw bytes (seed 0), low 32
// bits.
func (r *Ring) PartitionForBytes(b []byte) int32 {
	return r.PartitionForHash(lowHash32(b))
}

// PartitionForNull returns the partition a null value always routes to:
// partition 0, for every value type (spec.md §4.3 step 1, and the
// Null-partition invariant in §8).
func (r *Ring) PartitionForNull() int32 { return 0 }

const minInt64 = int64(-1) << 63

// lowHash32 computes MurmurHash3 x64-128 over b with seed 0, reinterprets
// the low 32 bits of the 128-bit result as a signed int32 (so it orders
// the same way the ring's signed tokens do), matching the external
// coordinator's bit-for-bit convention spec.md §4.3 pins the router to.
func lowHash32(b []byte) int32 {
	h1, _ := murmur3.Sum128WithSeed(b, 0)
	return int32(uint32(h1))
}

// PartitionForHash maps a raw signed 32-bit hash to a partition by binary
// search on the sorted token array: find the largest index i with
// tokens[i] <= h, and return partitions[i]. The minimum token
// conventionally anchors the ring (INT32_MIN, per spec.md §8's seeded
// scenario), so the "h precedes every token" wrap-around case is
// unreachable for a well-formed ring; the fallback returns the last
// partition. Exported so callers that already hold a
// hash (e.g. a cross-checking test harness, or the enginectl ring
// inspector) can bypass the hash step.
func (r *Ring) PartitionForHash(h int32) int32 {
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].token > h
	})
	if i == 0 {
		return r.entries[len(r.entries)-1].partition
	}
	return r.entries[i-1].partition
}
