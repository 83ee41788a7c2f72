// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package index

import (
	"sort"

	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/tuple"
)

// orderedEntry is always stored as a (base key, pointer) composite,
// whether or not the index is unique: this lets unique and multi share
// one sorted-slice implementation, with uniqueness enforced at Add time
// by checking for an existing entry whose base key alone matches,
// irrespective of pointer.
type orderedEntry struct {
	k   key.Key
	ptr key.RowPointer
}

// orderedIndex is a compacting ordered map over a sorted slice of
// entries, per spec.md §4.4.2. Node-pool defragmentation (the literal
// "move the last-allocated node into the freed slot" detail spec.md
// describes for the underlying allocator) is elided: a Go slice already
// keeps entries densely packed with no fragmentation to compact, so
// insert/delete here reduce to a sorted-slice insert/remove, which
// preserves every externally observable ordering, rank, and
// replace-without-key-change semantic the interface promises.
type orderedIndex struct {
	entries []orderedEntry
	unique  bool
	ranked  bool
	extract KeyExtractor
}

func newOrderedIndex(unique, ranked bool, extract KeyExtractor) *orderedIndex {
	return &orderedIndex{unique: unique, ranked: ranked, extract: extract}
}

// position returns the insertion point for target: the first index i
// such that entries[i].k >= target (by base key, then pointer tie-break
// for multi entries sharing a base key).
func (idx *orderedIndex) position(target orderedEntry) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return compareEntry(idx.entries[i], target) >= 0
	})
}

func compareEntry(a, b orderedEntry) int {
	if c := a.k.Compare(b.k); c != 0 {
		return c
	}
	switch {
	case a.ptr < b.ptr:
		return -1
	case a.ptr > b.ptr:
		return 1
	default:
		return 0
	}
}

func (idx *orderedIndex) findUnique(k key.Key) (int, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(k) >= 0
	})
	if i < len(idx.entries) && idx.entries[i].k.Equal(k) {
		return i, true
	}
	return i, false
}

func (idx *orderedIndex) Add(t *tuple.Tuple, ptr key.RowPointer) (key.RowPointer, bool, error) {
	k, err := idx.extract(t)
	if err != nil {
		return 0, false, err
	}
	if idx.unique {
		i, found := idx.findUnique(k)
		if found {
			conflict := idx.entries[i].ptr
			releaseKey(k)
			return conflict, true, nil
		}
		idx.insertAt(i, orderedEntry{k: k, ptr: ptr})
		return 0, false, nil
	}
	e := orderedEntry{k: k, ptr: ptr}
	i := idx.position(e)
	idx.insertAt(i, e)
	return 0, false, nil
}

func (idx *orderedIndex) insertAt(i int, e orderedEntry) {
	idx.entries = append(idx.entries, orderedEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = e
}

func (idx *orderedIndex) removeAt(i int) {
	copy(idx.entries[i:], idx.entries[i+1:])
	idx.entries = idx.entries[:len(idx.entries)-1]
}

func (idx *orderedIndex) Delete(t *tuple.Tuple, ptr key.RowPointer) (bool, error) {
	k, err := idx.extract(t)
	if err != nil {
		return false, err
	}
	// k is extracted solely to locate the stored entry; it is never kept,
	// so its pool-owned storage (if any) is released regardless of which
	// path below returns.
	defer releaseKey(k)
	if idx.unique {
		i, found := idx.findUnique(k)
		if !found {
			return false, nil
		}
		releaseKey(idx.entries[i].k)
		idx.removeAt(i)
		return true, nil
	}
	target := orderedEntry{k: k, ptr: ptr}
	i := idx.position(target)
	if i < len(idx.entries) && compareEntry(idx.entries[i], target) == 0 {
		releaseKey(idx.entries[i].k)
		idx.removeAt(i)
		return true, nil
	}
	return false, nil
}

func (idx *orderedIndex) ReplaceWithoutKeyChange(t *tuple.Tuple, newPtr, oldPtr key.RowPointer) (bool, error) {
	k, err := idx.extract(t)
	if err != nil {
		return false, err
	}
	if idx.unique {
		// k only ever serves the lookup here; the stored key at
		// entries[i] is untouched, so k itself is always discarded.
		defer releaseKey(k)
		i, found := idx.findUnique(k)
		if !found {
			return false, nil
		}
		idx.entries[i].ptr = newPtr
		return true, nil
	}
	old := orderedEntry{k: k, ptr: oldPtr}
	i := idx.position(old)
	if i >= len(idx.entries) || compareEntry(idx.entries[i], old) != 0 {
		releaseKey(k)
		return false, nil
	}
	releaseKey(idx.entries[i].k)
	idx.removeAt(i)
	neu := orderedEntry{k: k, ptr: newPtr}
	idx.insertAt(idx.position(neu), neu)
	return true, nil
}

func (idx *orderedIndex) Exists(t *tuple.Tuple) (bool, error) {
	k, err := idx.extract(t)
	if err != nil {
		return false, err
	}
	_, found := idx.findUnique(k)
	return found, nil
}

func (idx *orderedIndex) CheckForKeyChange(lhs, rhs *tuple.Tuple) (bool, error) {
	a, err := idx.extract(lhs)
	if err != nil {
		return false, err
	}
	b, err := idx.extract(rhs)
	if err != nil {
		return false, err
	}
	return !a.Equal(b), nil
}

func (idx *orderedIndex) Size() int { return len(idx.entries) }

func (idx *orderedIndex) MemoryEstimate() int64 {
	// A rough per-entry estimate; exact accounting depends on the chosen
	// key variant's footprint, which this layer doesn't track precisely.
	return int64(len(idx.entries)) * 64
}

// --- Ordered interface ---

func (idx *orderedIndex) cursorFrom(start int) *Cursor {
	pos := start
	return &Cursor{
		next: func() (key.RowPointer, bool) {
			if pos >= len(idx.entries) {
				return 0, false
			}
			p := idx.entries[pos].ptr
			pos++
			return p, true
		},
	}
}

// cursorAtKey builds a cursor whose NextValueAtKey stops at the key
// boundary starting at start, and whose AdvanceToNextKey jumps to the
// next distinct base key.
func (idx *orderedIndex) cursorAtKey(start int) *Cursor {
	if start < 0 {
		start = -1
	}
	pos := start
	var boundaryKey key.Key
	if pos >= 0 && pos < len(idx.entries) {
		boundaryKey = idx.entries[pos].k
	}
	c := &Cursor{
		next: func() (key.RowPointer, bool) {
			if pos < 0 || pos >= len(idx.entries) {
				return 0, false
			}
			p := idx.entries[pos].ptr
			pos++
			return p, true
		},
		nextAtKey: func() (key.RowPointer, bool) {
			if pos < 0 || pos >= len(idx.entries) || boundaryKey == nil || !idx.entries[pos].k.Equal(boundaryKey) {
				return 0, false
			}
			p := idx.entries[pos].ptr
			pos++
			return p, true
		},
	}
	c.advance = func() bool {
		if pos < 0 {
			pos = 0
		}
		for pos < len(idx.entries) && boundaryKey != nil && idx.entries[pos].k.Equal(boundaryKey) {
			pos++
		}
		if pos >= len(idx.entries) {
			boundaryKey = nil
			return false
		}
		boundaryKey = idx.entries[pos].k
		return true
	}
	return c
}

func (idx *orderedIndex) MoveToKey(searchKey key.Key) (*Cursor, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) >= 0
	})
	if i >= len(idx.entries) || !idx.entries[i].k.Equal(searchKey) {
		return idx.cursorAtKey(len(idx.entries)), false
	}
	return idx.cursorAtKey(i), true
}

func (idx *orderedIndex) MoveToKeyOrGreater(searchKey key.Key) *Cursor {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) >= 0
	})
	return idx.cursorAtKey(i)
}

func (idx *orderedIndex) MoveToGreaterThanKey(searchKey key.Key) *Cursor {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) > 0
	})
	return idx.cursorAtKey(i)
}

func (idx *orderedIndex) MoveToLessThanKey(searchKey key.Key) *Cursor {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) >= 0
	})
	return idx.cursorAtKey(i - 1)
}

func (idx *orderedIndex) MoveToKeyOrLess(searchKey key.Key) *Cursor {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) > 0
	})
	return idx.cursorAtKey(i - 1)
}

func (idx *orderedIndex) MoveToEnd(forward bool) *Cursor {
	if forward {
		return idx.cursorAtKey(0)
	}
	return idx.cursorAtKey(len(idx.entries) - 1)
}

// --- Ranked interface (only meaningful when idx.ranked) ---

func (idx *orderedIndex) RankLower(searchKey key.Key) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) >= 0
	})
}

func (idx *orderedIndex) RankUpper(searchKey key.Key) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].k.Compare(searchKey) > 0
	})
}

func (idx *orderedIndex) FindRank(n int) (key.RowPointer, bool) {
	if n < 0 || n >= len(idx.entries) {
		return 0, false
	}
	return idx.entries[n].ptr, true
}
