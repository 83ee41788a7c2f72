// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/partitiondb/core/hostbridge"
	"github.com/partitiondb/core/index"
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/internal/clock"
	"github.com/partitiondb/core/internal/coord"
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/internal/metrics"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/tuple"
)

// blockIndexShift packs a block index into a RowPointer's high 32 bits
// and a slot index into its low 32 bits, giving an O(1) decode with no
// indirection table. 2^32 blocks is far beyond what an in-memory table
// will ever allocate.
const blockIndexShift = 32

func encodePointer(blockIdx, slot int) key.RowPointer {
	return key.RowPointer(uint64(uint32(blockIdx))<<blockIndexShift | uint64(uint32(slot)))
}

func decodePointer(ptr key.RowPointer) (blockIdx, slot int) {
	return int(uint32(uint64(ptr) >> blockIndexShift)), int(uint32(uint64(ptr)))
}

// attachedIndex pairs an index with the diagnostic name metrics and
// enginectl report it under.
type attachedIndex struct {
	name string
	idx  index.Index
}

// Table is a block-allocated, in-memory row store for one base table:
// the home of spec.md §4.6's block pool, compaction predicate, and
// table-level wire codec. A Table is single-threaded per spec.md §5's
// scheduling model: every exported method is called from the one
// engine goroutine that owns it, except for the coordination hand-off
// internal/coord performs on behalf of a replicated table.
type Table struct {
	schema *schema.Schema
	pool   *arenaPool

	blocks         []*block
	tupleStride    int
	tuplesPerBlock int
	activeCount    int

	compactionThreshold int // percentage, per spec.md §4.6
	includeHidden       bool

	indexes []attachedIndex

	replicated bool
	coordGroup *coord.Group
	opSeq      uint64

	metrics *metrics.Registry
	host    hostbridge.Host
}

// NewTable constructs an empty Table over s, with the given compaction
// threshold percentage (spec.md §4.6).
func NewTable(s *schema.Schema, compactionThreshold int) *Table {
	stride := s.InlineLength(true)
	return &Table{
		schema:              s,
		pool:                newArenaPool(),
		tupleStride:         stride,
		tuplesPerBlock:      tuplesPerBlockFor(stride),
		compactionThreshold: compactionThreshold,
		coordGroup:          coord.NewGroup(),
	}
}

// Schema returns the table's schema.
func (tb *Table) Schema() *schema.Schema { return tb.schema }

// Pool returns the table's non-inlined allocator, for key variants
// (GenericPersistentKey) that must outlive the row that produced them.
func (tb *Table) Pool() tuple.Pool { return tb.pool }

// ActiveCount reports the active-tuple count (spec.md §4.6: "does not
// distinguish pending-delete from active for iteration").
func (tb *Table) ActiveCount() int { return tb.activeCount }

// NonInlinedBytes reports the table's non-inlined-memory counter.
func (tb *Table) NonInlinedBytes() int64 { return tb.pool.NonInlinedBytes() }

// SetReplicated marks the table as replicated, routing DML operations
// through group for cross-engine coordination (spec.md §5).
func (tb *Table) SetReplicated(replicated bool, group *coord.Group) {
	tb.replicated = replicated
	if group != nil {
		tb.coordGroup = group
	}
}

// SetMetrics attaches a metrics registry that Insert/Delete/Compact
// report through. Optional; a nil registry (the zero value) disables
// instrumentation.
func (tb *Table) SetMetrics(reg *metrics.Registry) { tb.metrics = reg }

// SetHost attaches the host bridge Compact reports progress through and
// requireActiveAt reports fatal invariant violations through (spec.md §6).
// Optional; a nil host disables both.
func (tb *Table) SetHost(h hostbridge.Host) { tb.host = h }

// AttachIndex registers idx under name, maintained on every subsequent
// Insert/Delete/Update/Compact. Indexes attached before any rows exist
// see every row; attaching onto a non-empty table is the caller's
// responsibility to backfill (not needed by any SPEC_FULL.md scenario,
// so left undone here).
func (tb *Table) AttachIndex(name string, idx index.Index) {
	tb.indexes = append(tb.indexes, attachedIndex{name: name, idx: idx})
}

func (tb *Table) nextOpKey(op string) string {
	n := atomic.AddUint64(&tb.opSeq, 1)
	return fmt.Sprintf("%s:%d", op, n)
}

// Insert adds t (deep-copied into table-owned storage) to the table,
// maintaining every attached index. Returns the new row's pointer.
func (tb *Table) Insert(t *tuple.Tuple) (key.RowPointer, error) {
	var ptr key.RowPointer
	_, err := tb.coordGroup.Execute(tb.nextOpKey("insert"), tb.replicated, true, func() (int, error) {
		p, err := tb.insertLocal(t)
		if err != nil {
			return 0, err
		}
		ptr = p
		return 1, nil
	})
	return ptr, err
}

func (tb *Table) insertLocal(t *tuple.Tuple) (key.RowPointer, error) {
	blockIdx, slot, slotBytes := tb.allocSlot()
	dst := tuple.New(slotBytes, tb.schema, tb.pool)
	if err := dst.Copy(t); err != nil {
		tb.blocks[blockIdx].freeSlot(slot)
		return 0, err
	}
	dst.SetActive(true)
	ptr := encodePointer(blockIdx, slot)

	if err := tb.addToIndexes(dst, ptr); err != nil {
		dst.Destroy()
		tb.blocks[blockIdx].freeSlot(slot)
		return 0, err
	}
	tb.activeCount++
	return ptr, nil
}

// adoptLocal takes ownership of t's inline bytes directly (a raw byte
// move, not a Copy/Dup), used only when t was just decoded straight
// into this table's pool (DeserializeTable) so duplicating its
// out-of-line references would leak the originals.
func (tb *Table) adoptLocal(t *tuple.Tuple) (key.RowPointer, error) {
	blockIdx, slot, slotBytes := tb.allocSlot()
	copy(slotBytes, t.Bytes())
	dst := tuple.New(slotBytes, tb.schema, tb.pool)
	ptr := encodePointer(blockIdx, slot)

	if err := tb.addToIndexes(dst, ptr); err != nil {
		dst.Destroy()
		tb.blocks[blockIdx].freeSlot(slot)
		return 0, err
	}
	tb.activeCount++
	return ptr, nil
}

// addToIndexes runs Add across every attached index, rolling back any
// indexes that already accepted the entry if a later one conflicts or
// errors, and reports conflicts as corerr.UniqueConstraint carrying the
// conflicting tuple's serialized bytes (spec.md §4.4's "caller...is
// responsible for turning [a conflict] into a corerr.UniqueConstraint").
func (tb *Table) addToIndexes(t *tuple.Tuple, ptr key.RowPointer) error {
	added := make([]attachedIndex, 0, len(tb.indexes))
	rollback := func() {
		for _, a := range added {
			_, _ = a.idx.Delete(t, ptr)
		}
	}
	for _, a := range tb.indexes {
		conflict, hasConflict, err := a.idx.Add(t, ptr)
		if err != nil {
			rollback()
			return err
		}
		if hasConflict {
			rollback()
			conflictBytes, cerr := tb.serializeTupleAt(conflict)
			if cerr != nil {
				return cerr
			}
			return corerr.UniqueConstraint(conflictBytes)
		}
		added = append(added, a)
		tb.observeIndexMutation(a.name, true)
	}
	return nil
}

func (tb *Table) observeIndexMutation(name string, inserted bool) {
	if tb.metrics == nil {
		return
	}
	if inserted {
		tb.metrics.IndexInserts.WithLabelValues(name).Inc()
	} else {
		tb.metrics.IndexDeletes.WithLabelValues(name).Inc()
	}
}

func (tb *Table) refreshIndexSizeGauges() {
	if tb.metrics == nil {
		return
	}
	for _, a := range tb.indexes {
		tb.metrics.IndexSize.WithLabelValues(a.name).Set(float64(a.idx.Size()))
	}
}

// Delete removes the row at ptr, maintaining every attached index.
func (tb *Table) Delete(ptr key.RowPointer) error {
	_, err := tb.coordGroup.Execute(tb.nextOpKey("delete"), tb.replicated, true, func() (int, error) {
		return 1, tb.deleteLocal(ptr)
	})
	return err
}

func (tb *Table) deleteLocal(ptr key.RowPointer) error {
	t, err := tb.requireActiveAt(ptr)
	if err != nil {
		return err
	}
	blockIdx, slot := decodePointer(ptr)
	for _, a := range tb.indexes {
		if _, err := a.idx.Delete(t, ptr); err != nil {
			return err
		}
		tb.observeIndexMutation(a.name, false)
	}
	t.Destroy()
	tb.blocks[blockIdx].freeSlot(slot)
	tb.activeCount--
	return nil
}

// Update replaces the row at ptr with newValues. If no attached index's
// key changes, the row is mutated in place at the same pointer;
// otherwise it is deleted and reinserted, which may move it to a new
// pointer (returned).
func (tb *Table) Update(ptr key.RowPointer, newValues *tuple.Tuple) (key.RowPointer, error) {
	var result key.RowPointer
	_, err := tb.coordGroup.Execute(tb.nextOpKey("update"), tb.replicated, true, func() (int, error) {
		p, err := tb.updateLocal(ptr, newValues)
		if err != nil {
			return 0, err
		}
		result = p
		return 1, nil
	})
	return result, err
}

func (tb *Table) updateLocal(ptr key.RowPointer, newValues *tuple.Tuple) (key.RowPointer, error) {
	cur, err := tb.requireActiveAt(ptr)
	if err != nil {
		return 0, err
	}
	changed := false
	for _, a := range tb.indexes {
		c, err := a.idx.CheckForKeyChange(cur, newValues)
		if err != nil {
			return 0, err
		}
		if c {
			changed = true
			break
		}
	}
	if !changed {
		if err := cur.Copy(newValues); err != nil {
			return 0, err
		}
		return ptr, nil
	}
	if err := tb.deleteLocal(ptr); err != nil {
		return 0, err
	}
	return tb.insertLocal(newValues)
}

// requireActiveAt resolves ptr to its live tuple, failing fatally on an
// out-of-range or inactive pointer (a programmer error, never a
// recoverable user-facing condition).
func (tb *Table) requireActiveAt(ptr key.RowPointer) (*tuple.Tuple, error) {
	blockIdx, slot := decodePointer(ptr)
	if blockIdx < 0 || blockIdx >= len(tb.blocks) {
		return nil, tb.fatal("storage: row pointer references out-of-range block %d", blockIdx)
	}
	b := tb.blocks[blockIdx]
	if slot < 0 || slot >= b.tuplesPerBlock || !b.isOccupied(slot) {
		return nil, tb.fatal("storage: row pointer references an unoccupied slot")
	}
	t := tuple.New(b.slotBytes(slot), tb.schema, tb.pool)
	if !t.IsActive() {
		return nil, tb.fatal("storage: row pointer references an inactive tuple")
	}
	return t, nil
}

// fatal builds a corerr.KindFatal error and, if a host bridge is attached,
// reports it via ReportFatal before returning. The host is expected to
// act on ReportFatal by terminating the engine process.
func (tb *Table) fatal(format string, args ...interface{}) *corerr.CoreError {
	err := corerr.Fatal(format, args...)
	if tb.host != nil {
		tb.host.ReportFatal(err.Error())
	}
	return err
}

// TupleAt returns the live tuple at ptr without any activity check, for
// read-only callers (view recompute sources, enginectl dump).
func (tb *Table) TupleAt(ptr key.RowPointer) (*tuple.Tuple, bool) {
	blockIdx, slot := decodePointer(ptr)
	if blockIdx < 0 || blockIdx >= len(tb.blocks) {
		return nil, false
	}
	b := tb.blocks[blockIdx]
	if slot < 0 || slot >= b.tuplesPerBlock || !b.isOccupied(slot) {
		return nil, false
	}
	return tuple.New(b.slotBytes(slot), tb.schema, tb.pool), true
}

// All iterates every active tuple in block/slot order, stopping early
// if fn returns false.
func (tb *Table) All(fn func(ptr key.RowPointer, t *tuple.Tuple) bool) {
	for bi, b := range tb.blocks {
		for slot := 0; slot < b.tuplesPerBlock; slot++ {
			if !b.isOccupied(slot) {
				continue
			}
			t := tuple.New(b.slotBytes(slot), tb.schema, tb.pool)
			if !t.IsActive() {
				continue
			}
			if !fn(encodePointer(bi, slot), t) {
				return
			}
		}
	}
}

func (tb *Table) serializeTupleAt(ptr key.RowPointer) ([]byte, error) {
	t, ok := tb.TupleAt(ptr)
	if !ok {
		return nil, tb.fatal("storage: conflicting row pointer no longer resolves to a live tuple")
	}
	w := newScratchWriter(tb.schema.MaxSerializedTupleSize(false))
	if err := t.WriteDefault(w); err != nil {
		return nil, err
	}
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out, nil
}

func (tb *Table) allocSlot() (blockIdx, slot int, slotBytes []byte) {
	for i, b := range tb.blocks {
		if b.hasFree() {
			s, sb := b.allocSlot()
			return i, s, sb
		}
	}
	nb := newBlock(tb.tupleStride, tb.tuplesPerBlock)
	tb.blocks = append(tb.blocks, nb)
	s, sb := nb.allocSlot()
	return len(tb.blocks) - 1, s, sb
}

func (tb *Table) totalFree() int {
	total := 0
	for _, b := range tb.blocks {
		total += b.freeCount()
	}
	return total
}

// CompactionNeeded reports spec.md §4.6's compaction predicate: with no
// pinned tuples, free-slot count exceeds
// max(3*tuples_per_block, (100-threshold)%*allocated_tuples). pinned
// reports whether the caller currently holds any pinned (undo-retained)
// tuples; compaction is always skipped while true.
func (tb *Table) CompactionNeeded(pinned bool) bool {
	if pinned || len(tb.blocks) == 0 {
		return false
	}
	allocated := len(tb.blocks) * tb.tuplesPerBlock
	byPercent := (100 - tb.compactionThreshold) * allocated / 100
	threshold := 3 * tb.tuplesPerBlock
	if byPercent > threshold {
		threshold = byPercent
	}
	return tb.totalFree() > threshold
}

// Compact performs one round of spec.md §4.6's compaction: picks the
// last block, moves its active tuples into earlier free slots (notifying
// every index via ReplaceWithoutKeyChange since the row's indexed
// columns do not change), and releases the block.
func (tb *Table) Compact() error {
	if len(tb.blocks) == 0 {
		return nil
	}
	start := clock.Now()
	lastIdx := len(tb.blocks) - 1
	last := tb.blocks[lastIdx]
	var moved int64
	for slot := 0; slot < last.tuplesPerBlock; slot++ {
		if !last.isOccupied(slot) {
			continue
		}
		destBlockIdx, destSlot, destBytes, ok := tb.allocSlotExcluding(lastIdx)
		if !ok {
			return tb.fatal("storage: compaction found no free slot outside the block being released")
		}
		copy(destBytes, last.slotBytes(slot))
		dst := tuple.New(destBytes, tb.schema, tb.pool)
		oldPtr := encodePointer(lastIdx, slot)
		newPtr := encodePointer(destBlockIdx, destSlot)
		for _, a := range tb.indexes {
			if _, err := a.idx.ReplaceWithoutKeyChange(dst, newPtr, oldPtr); err != nil {
				return err
			}
		}
		moved++
		if tb.host != nil && moved%1024 == 0 {
			if _, cancel := tb.host.ReportProgress(hostbridge.FragmentStats{
				TuplesProcessed: moved,
				CurrentMemBytes: int64(len(tb.blocks)) * int64(tb.tupleStride) * int64(tb.tuplesPerBlock),
			}); cancel {
				return corerr.New(corerr.KindQueryTimedOut, "storage: compaction cancelled by host after moving %d tuples", moved)
			}
		}
	}
	tb.blocks = tb.blocks[:lastIdx]
	if tb.metrics != nil {
		tb.metrics.RecordCompactionMicros(start.Elapsed().Microseconds())
	}
	tb.refreshIndexSizeGauges()
	return nil
}

func (tb *Table) allocSlotExcluding(exclude int) (blockIdx, slot int, slotBytes []byte, ok bool) {
	for i, b := range tb.blocks {
		if i == exclude {
			continue
		}
		if b.hasFree() {
			s, sb := b.allocSlot()
			return i, s, sb, true
		}
	}
	return 0, 0, nil, false
}

// CompactIfNeeded runs Compact once if CompactionNeeded(pinned) holds,
// reporting whether it ran.
func (tb *Table) CompactIfNeeded(pinned bool) (bool, error) {
	if !tb.CompactionNeeded(pinned) {
		return false, nil
	}
	return true, tb.Compact()
}

// FreezeColdBlocks s2-compresses every full block's backing slab in
// place to shrink RSS, per spec.md §4.6's in-memory (not on-disk)
// compression note. Any access thaws a frozen block back to a live
// slab automatically, so this is purely a memory/CPU tradeoff knob a
// caller can invoke between bursts of mutation activity.
func (tb *Table) FreezeColdBlocks() {
	for _, b := range tb.blocks {
		b.freeze()
	}
}
