// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package view

import (
	"testing"

	"github.com/partitiondb/core/hostbridge"
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/tuple"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func gvSchema() *schema.Schema {
	return schema.New(
		schema.Column{Name: "g", Type: schema.Integer, Inline: true},
		schema.Column{Name: "v", Type: schema.Integer, Inline: true},
	)
}

func gvTuple(t *testing.T, s *schema.Schema, g, v int32) *tuple.Tuple {
	t.Helper()
	tup := tuple.New(make([]byte, s.InlineLength(false)), s, nil)
	require.NoError(t, tup.Set(0, tuple.IntValue(int64(g))))
	require.NoError(t, tup.Set(1, tuple.IntValue(int64(v))))
	return tup
}

// sequentialScanSource is a RecomputeSource whose only working rung is the
// sequential scan, backed directly by a live set of tuples: enough to
// exercise the ladder's final fallback without a real storage/index layer.
type sequentialScanSource struct {
	schema *schema.Schema
	live   map[key.RowPointer]*tuple.Tuple
	column int
}

func (s *sequentialScanSource) FallbackPlan(groupByColumns []int, aggColumn int) FallbackMinMaxPlan {
	return nil
}

func (s *sequentialScanSource) IndexSeek(key.Key, int, Direction, key.RowPointer) (tuple.Value, bool, error) {
	return tuple.Value{}, false, nil
}

func (s *sequentialScanSource) GroupScan(key.Key, int, Direction, key.RowPointer) (tuple.Value, bool, error) {
	return tuple.Value{}, false, nil
}

func (s *sequentialScanSource) SequentialScan(groupKey key.Key, aggColumn int, dir Direction, exclude key.RowPointer) (tuple.Value, bool, error) {
	var best tuple.Value
	found := false
	for ptr, t := range s.live {
		if ptr == exclude {
			continue
		}
		gv, err := t.Get(0)
		if err != nil {
			return tuple.Value{}, false, err
		}
		gk, err := key.NewIntsKey([]tuple.Value{gv}, []schema.ColumnType{schema.Integer}, 1)
		if err != nil {
			return tuple.Value{}, false, err
		}
		if !gk.Equal(groupKey) {
			continue
		}
		val, err := t.Get(aggColumn)
		if err != nil {
			return tuple.Value{}, false, err
		}
		if !found {
			best, found = val, true
			continue
		}
		cmp := val.Compare(best, schema.Integer)
		if (dir == Ascending && cmp < 0) || (dir == Descending && cmp > 0) {
			best = val
		}
	}
	return best, found, nil
}

func TestViewMinRecomputeSeededScenario(t *testing.T) {
	s := gvSchema()
	live := map[key.RowPointer]*tuple.Tuple{}
	source := &sequentialScanSource{schema: s, live: live, column: 1}
	mv := New(s, []int{0}, []AggregateSpec{{Column: 1, Kind: Min}}, nil, source)

	insert := func(ptr key.RowPointer, g, v int32) {
		tup := gvTuple(t, s, g, v)
		live[ptr] = tup
		require.NoError(t, mv.Insert(tup))
	}
	insert(1, 1, 5)
	insert(2, 1, 3)
	insert(3, 1, 7)

	snap, count, found, err := mv.Snapshot(gvTuple(t, s, 1, 0))
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, count)
	require.EqualValues(t, 3, snap[0].Int)

	delTup := live[2]
	delete(live, 2)
	require.NoError(t, mv.Delete(delTup, 2))

	snap, count, found, err = mv.Snapshot(gvTuple(t, s, 1, 0))
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 2, count)
	require.EqualValues(t, 5, snap[0].Int)
}

func TestViewRowRemovedWhenCountStarHitsZero(t *testing.T) {
	s := gvSchema()
	live := map[key.RowPointer]*tuple.Tuple{}
	source := &sequentialScanSource{schema: s, live: live, column: 1}
	mv := New(s, []int{0}, []AggregateSpec{{Column: 1, Kind: Sum}}, nil, source)

	tup := gvTuple(t, s, 9, 2)
	live[1] = tup
	require.NoError(t, mv.Insert(tup))
	require.Equal(t, 1, mv.GroupCount())

	require.NoError(t, mv.Delete(tup, 1))
	require.Equal(t, 0, mv.GroupCount())
}

func TestViewUpdateMovesGroup(t *testing.T) {
	s := gvSchema()
	live := map[key.RowPointer]*tuple.Tuple{}
	source := &sequentialScanSource{schema: s, live: live, column: 1}
	mv := New(s, []int{0}, []AggregateSpec{{Column: 1, Kind: Count}}, nil, source)

	oldTup := gvTuple(t, s, 1, 10)
	live[1] = oldTup
	require.NoError(t, mv.Insert(oldTup))

	newTup := gvTuple(t, s, 2, 10)
	live[1] = newTup
	require.NoError(t, mv.Update(oldTup, newTup, 1))

	_, _, foundOld, err := mv.Snapshot(gvTuple(t, s, 1, 0))
	require.NoError(t, err)
	require.False(t, foundOld)

	snap, count, foundNew, err := mv.Snapshot(gvTuple(t, s, 2, 0))
	require.NoError(t, err)
	require.True(t, foundNew)
	require.EqualValues(t, 1, count)
	require.EqualValues(t, 1, snap[0].Int)
}

// naiveOracle recomputes a SUM(v) GROUP BY g view from scratch by scanning
// every currently-live tuple, the brute-force definition the view invariant
// (spec.md §9) checks the maintained view against.
func naiveOracle(live map[key.RowPointer]*tuple.Tuple) map[int64]int64 {
	out := map[int64]int64{}
	for _, t := range live {
		g, _ := t.Get(0)
		v, _ := t.Get(1)
		out[g.Int] += v.Int
	}
	return out
}

func TestViewInvariantAgainstNaiveOracle(t *testing.T) {
	s := gvSchema()
	live := map[key.RowPointer]*tuple.Tuple{}
	source := &sequentialScanSource{schema: s, live: live, column: 1}
	mv := New(s, []int{0}, []AggregateSpec{{Column: 1, Kind: Sum}}, nil, source)

	rng := rand.New(rand.NewSource(42))
	var ptr key.RowPointer
	present := map[key.RowPointer]bool{}

	for i := 0; i < 500; i++ {
		if len(present) == 0 || rng.Intn(2) == 0 {
			ptr++
			g := int32(rng.Intn(5))
			v := int32(rng.Intn(20))
			tup := gvTuple(t, s, g, v)
			live[ptr] = tup
			present[ptr] = true
			require.NoError(t, mv.Insert(tup))
		} else {
			var victim key.RowPointer
			for p := range present {
				victim = p
				break
			}
			tup := live[victim]
			delete(live, victim)
			delete(present, victim)
			require.NoError(t, mv.Delete(tup, victim))
		}
	}

	oracle := naiveOracle(live)
	for g, want := range oracle {
		snap, _, found, err := mv.Snapshot(gvTuple(t, s, int32(g), 0))
		require.NoError(t, err)
		require.True(t, found, "group %d missing from view", g)
		require.EqualValues(t, want, snap[0].Int, "group %d sum mismatch", g)
	}
	require.Equal(t, len(oracle), mv.GroupCount())
}

// fakeHost is a minimal hostbridge.Host recording the last fatal reason,
// for tests that only need to observe whether a report happened.
type fakeHost struct {
	lastFatal string
}

func (h *fakeHost) ReportProgress(hostbridge.FragmentStats) (int64, bool) { return 0, false }
func (h *fakeHost) FragmentText(int64) (string, error)                   { return "", nil }
func (h *fakeHost) NextDependency(int32) ([]byte, bool, error)           { return nil, false, nil }
func (h *fakeHost) InvokeUserFunction(string, []byte) ([]byte, error)    { return nil, nil }
func (h *fakeHost) PushStreamBuffer(int32, string, []byte) (int64, error) {
	return 0, nil
}
func (h *fakeHost) ReportFatal(reason string) { h.lastFatal = reason }

// TestViewReportsFatalThroughHostWhenSourceMissing exercises the
// hostbridge wiring: a Min/Max aggregate with no RecomputeSource is a
// configuration error the view cannot recover from, and when a host is
// attached it learns about it via ReportFatal rather than only through
// the returned error.
func TestViewReportsFatalThroughHostWhenSourceMissing(t *testing.T) {
	s := gvSchema()
	mv := New(s, []int{0}, []AggregateSpec{{Column: 1, Kind: Min}}, nil, nil)
	host := &fakeHost{}
	mv.SetHost(host)

	first := gvTuple(t, s, 1, 5)
	require.NoError(t, mv.Insert(first))
	second := gvTuple(t, s, 1, 3)
	require.NoError(t, mv.Insert(second))

	// Deleting the current minimum (3) forces a recompute, which fails
	// fatally with no RecomputeSource configured.
	require.Error(t, mv.Delete(second, 2))
	require.NotEmpty(t, host.lastFatal)
}
