// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package storage

import "github.com/klauspost/compress/s2"

// targetBlockBytes is the typical block allocation size spec.md §4.6
// names ("sized to a target allocation (typically 2 MiB)").
const targetBlockBytes = 2 << 20

// block is a contiguous run of equal-sized tuple slots: the unit of
// table storage growth and compaction (GLOSSARY, spec.md §4.6). A full
// block with no free slots may be frozen (s2-compressed in place) to
// shrink its RSS footprint; any access thaws it back to a live slab
// first, so frozen is an implementation detail invisible above block.
type block struct {
	data           []byte
	compressed     []byte // non-nil only while frozen; data is nil then
	tupleStride    int
	tuplesPerBlock int
	free           []int // stack of free slot indices
	occupied       []bool
}

// tuplesPerBlockFor computes how many tupleStride-sized slots fit in a
// block of roughly targetBlockBytes, with a floor of 1 so a schema wider
// than the target still gets a working (if oversized) block.
func tuplesPerBlockFor(tupleStride int) int {
	if tupleStride <= 0 {
		return 1
	}
	n := targetBlockBytes / tupleStride
	if n < 1 {
		n = 1
	}
	return n
}

func newBlock(tupleStride, tuplesPerBlock int) *block {
	free := make([]int, tuplesPerBlock)
	for i := range free {
		free[i] = tuplesPerBlock - 1 - i
	}
	return &block{
		data:           make([]byte, tupleStride*tuplesPerBlock),
		tupleStride:    tupleStride,
		tuplesPerBlock: tuplesPerBlock,
		free:           free,
		occupied:       make([]bool, tuplesPerBlock),
	}
}

func (b *block) hasFree() bool { return !b.isFrozen() && len(b.free) > 0 }

func (b *block) isFrozen() bool { return b.compressed != nil }

func (b *block) allocSlot() (int, []byte) {
	b.thaw()
	n := len(b.free)
	slot := b.free[n-1]
	b.free = b.free[:n-1]
	b.occupied[slot] = true
	return slot, b.slotBytes(slot)
}

func (b *block) freeSlot(slot int) {
	b.thaw()
	b.occupied[slot] = false
	b.free = append(b.free, slot)
}

func (b *block) slotBytes(slot int) []byte {
	b.thaw()
	off := slot * b.tupleStride
	return b.data[off : off+b.tupleStride]
}

func (b *block) isOccupied(slot int) bool { return b.occupied[slot] }

func (b *block) freeCount() int { return len(b.free) }

// freeze s2-compresses a completely full block's backing slab in place,
// discarding the uncompressed copy, for the cold-block RSS optimization
// spec.md §4.6 names. A block with any free slots is never frozen: it
// is about to be written to again.
func (b *block) freeze() {
	if b.isFrozen() || b.hasFree() {
		return
	}
	b.compressed = s2.Encode(nil, b.data)
	b.data = nil
}

// thaw decompresses a frozen block back to a live slab. A no-op when
// the block is not frozen.
func (b *block) thaw() {
	if !b.isFrozen() {
		return
	}
	data, err := s2.Decode(nil, b.compressed)
	if err != nil {
		panic(err) // corrupt in-process state; not a recoverable condition
	}
	b.data = data
	b.compressed = nil
}
