// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package storage

import (
	"testing"

	"github.com/partitiondb/core/hostbridge"
	"github.com/partitiondb/core/index"
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/serialize"
	"github.com/partitiondb/core/tuple"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// fakeHost is a minimal hostbridge.Host recording calls, for tests that
// only need to observe whether the wiring fired.
type fakeHost struct {
	progressCalls int
	cancelAfter   int
	lastFatal     string
}

func (h *fakeHost) ReportProgress(hostbridge.FragmentStats) (int64, bool) {
	h.progressCalls++
	return 0, h.cancelAfter > 0 && h.progressCalls >= h.cancelAfter
}
func (h *fakeHost) FragmentText(int64) (string, error)                 { return "", nil }
func (h *fakeHost) NextDependency(int32) ([]byte, bool, error)         { return nil, false, nil }
func (h *fakeHost) InvokeUserFunction(string, []byte) ([]byte, error)  { return nil, nil }
func (h *fakeHost) PushStreamBuffer(int32, string, []byte) (int64, error) {
	return 0, nil
}
func (h *fakeHost) ReportFatal(reason string) { h.lastFatal = reason }

// newTableForBlockSize is test-only: it pins tuplesPerBlock to a small
// value instead of deriving it from targetBlockBytes, so block-boundary
// behavior (new block allocation, compaction) can be exercised without
// inserting hundreds of thousands of rows.
func newTableForBlockSize(s *schema.Schema, compactionThreshold, tuplesPerBlock int) *Table {
	tb := NewTable(s, compactionThreshold)
	tb.tuplesPerBlock = tuplesPerBlock
	return tb
}

func idOnlySchema() *schema.Schema {
	return schema.New(schema.Column{Name: "id", Type: schema.Integer, Inline: true})
}

func idTuple(t *testing.T, s *schema.Schema, id int32) *tuple.Tuple {
	t.Helper()
	tup := tuple.New(make([]byte, s.InlineLength(false)), s, nil)
	require.NoError(t, tup.Set(0, tuple.IntValue(int64(id))))
	return tup
}

func threeColumnSchema() *schema.Schema {
	return schema.New(
		schema.Column{Name: "id", Type: schema.Integer, Inline: true},
		schema.Column{Name: "name", Type: schema.Varchar, DeclaredLength: 64, LengthInBytes: true, Nullable: true, Inline: false},
		schema.Column{Name: "score", Type: schema.Float, Inline: true},
	)
}

func randomName(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	n := 1 + rng.Intn(20)
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}

// TestTableRoundTrip is spec.md §8 scenario 6: a 3-column table (int,
// varchar, float), 100 random rows, serialize/deserialize, and table
// equality (same size, same tuples in iteration order).
func TestTableRoundTrip(t *testing.T) {
	s := threeColumnSchema()
	tb := NewTable(s, 90)
	scratch := newArenaPool()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		tup := tuple.New(make([]byte, s.InlineLength(false)), s, scratch)
		require.NoError(t, tup.Set(0, tuple.IntValue(int64(i))))
		require.NoError(t, tup.Set(1, tuple.BytesValue([]byte(randomName(rng)))))
		require.NoError(t, tup.Set(2, tuple.FloatValue(rng.Float64()*1000)))
		_, err := tb.Insert(tup)
		require.NoError(t, err)
	}
	require.Equal(t, 100, tb.ActiveCount())

	w := serialize.NewCopyWriter(4096)
	require.NoError(t, tb.SerializeTo(w))

	r := serialize.NewReader(w.Bytes())
	tb2, err := DeserializeTable(r, s, 90, false)
	require.NoError(t, err)
	require.Equal(t, tb.ActiveCount(), tb2.ActiveCount())

	var want, got []*tuple.Tuple
	tb.All(func(_ key.RowPointer, tup *tuple.Tuple) bool {
		want = append(want, tup)
		return true
	})
	tb2.All(func(_ key.RowPointer, tup *tuple.Tuple) bool {
		got = append(got, tup)
		return true
	})
	require.Len(t, got, len(want))
	for i := range want {
		eq, err := want[i].Equal(got[i])
		require.NoError(t, err)
		require.True(t, eq, "row %d mismatch", i)
	}
}

// TestCompactionPreservesCountAndIndex is spec.md §8's compaction
// preservation property: after deletes followed by a forced compaction,
// active_tuple_count is unchanged, the index still contains exactly the
// surviving tuples, and no index pointer dangles.
func TestCompactionPreservesCountAndIndex(t *testing.T) {
	s := idOnlySchema()
	tb := newTableForBlockSize(s, 50, 4)
	extract := index.NewKeyExtractor(s, []int{0}, nil)
	idx := index.New(index.Options{Unique: true, Ordered: true}, extract)
	tb.AttachIndex("pk", idx)

	var ptrs []key.RowPointer
	for i := int32(0); i < 20; i++ {
		ptr, err := tb.Insert(idTuple(t, s, i))
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	require.Equal(t, 20, tb.ActiveCount())
	require.Equal(t, 20, idx.Size())

	// Empty out the first two blocks (ids 0-7) entirely, leaving the
	// last block (ids 16-19) as the compaction target with plenty of
	// earlier free slots to move into.
	for i := 0; i < 8; i++ {
		require.NoError(t, tb.Delete(ptrs[i]))
	}
	require.Equal(t, 12, tb.ActiveCount())
	require.Equal(t, 12, idx.Size())

	// 8 free slots do not exceed max(3*4, 50% of 20) = 12, so the
	// predicate does not fire and the compaction below is forced.
	require.False(t, tb.CompactionNeeded(false))
	require.NoError(t, tb.Compact())

	require.Equal(t, 12, tb.ActiveCount())
	require.Equal(t, 12, idx.Size())
	require.Len(t, tb.blocks, 4)

	ordered, err := index.AsOrdered(idx)
	require.NoError(t, err)
	cur := ordered.MoveToEnd(true)
	var gotIDs []int32
	for {
		ptr, ok := cur.NextValue()
		if !ok {
			break
		}
		tup, ok := tb.TupleAt(ptr)
		require.True(t, ok, "dangling index pointer")
		v, err := tup.Get(0)
		require.NoError(t, err)
		gotIDs = append(gotIDs, int32(v.Int))
	}
	require.Equal(t, []int32{8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, gotIDs)
}

func TestUniqueConstraintCarriesConflictingTupleBytes(t *testing.T) {
	s := idOnlySchema()
	tb := NewTable(s, 90)
	extract := index.NewKeyExtractor(s, []int{0}, nil)
	idx := index.New(index.Options{Unique: true, Ordered: false}, extract)
	tb.AttachIndex("pk", idx)

	_, err := tb.Insert(idTuple(t, s, 42))
	require.NoError(t, err)

	_, err = tb.Insert(idTuple(t, s, 42))
	require.Error(t, err)
	var coreErr interface{ ConflictingTuple() []byte }
	require.ErrorAs(t, err, &coreErr)
	require.NotEmpty(t, coreErr.ConflictingTuple())

	// the failed insert must not have left a dangling table slot behind
	require.Equal(t, 1, tb.ActiveCount())
	require.Equal(t, 1, idx.Size())
}

// TestFatalInvariantViolationReportsThroughHost exercises the hostbridge
// wiring: an out-of-range row pointer is a programmer error the table
// treats as fatal, and when a host is attached it learns about it via
// ReportFatal in addition to the returned error.
func TestFatalInvariantViolationReportsThroughHost(t *testing.T) {
	s := idOnlySchema()
	tb := NewTable(s, 90)
	host := &fakeHost{}
	tb.SetHost(host)

	_, err := tb.Insert(idTuple(t, s, 1))
	require.NoError(t, err)

	badPtr := encodePointer(7, 0) // no block 7 exists
	err = tb.Delete(badPtr)
	require.Error(t, err)
	require.NotEmpty(t, host.lastFatal)
}

// TestCompactionReportsProgressAndHonorsCancellation exercises the
// hostbridge wiring on the Compact hot path: progress is reported every
// 1024 moved tuples, and a host that asks for cancellation gets
// corerr.KindQueryTimedOut back instead of a completed compaction.
func TestCompactionReportsProgressAndHonorsCancellation(t *testing.T) {
	s := idOnlySchema()
	tb := newTableForBlockSize(s, 50, 2048)

	var ptrs []key.RowPointer
	for i := int32(0); i < 4096; i++ {
		ptr, err := tb.Insert(idTuple(t, s, i))
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	// Empty the first block entirely so the last block has somewhere to
	// move into, and force compaction to actually run.
	for i := 0; i < 2048; i++ {
		require.NoError(t, tb.Delete(ptrs[i]))
	}

	host := &fakeHost{cancelAfter: 1}
	tb.SetHost(host)
	err := tb.Compact()
	require.Error(t, err)
	require.GreaterOrEqual(t, host.progressCalls, 1)
}
