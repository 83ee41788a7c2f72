// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package view implements materialized-view maintenance: a summary table
// kept in sync with a base table's mutations via group-by projection and
// per-column aggregates, including the MIN/MAX index-assisted recompute
// ladder a deletion of the current extremum requires (spec.md §4.5).
package view

import (
	"github.com/cockroachdb/swiss"
	"github.com/partitiondb/core/hostbridge"
	"github.com/partitiondb/core/index"
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/internal/corerr"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/tuple"
)

// AggregateKind identifies a view column's monoid.
type AggregateKind byte

const (
	Sum AggregateKind = iota
	Count
	Min
	Max
)

// AggregateSpec describes one aggregate column: which base-table column it
// summarizes and under which monoid.
type AggregateSpec struct {
	Column int
	Kind   AggregateKind
}

// RowPredicate is the view's optional filter; a nil RowPredicate always
// passes.
type RowPredicate func(t *tuple.Tuple) (bool, error)

// Direction says which end of a group MIN (Ascending) or MAX (Descending)
// recompute scans toward.
type Direction byte

const (
	Ascending Direction = iota
	Descending
)

// FallbackMinMaxPlan stands in for a planner-chosen executor fragment
// (out of scope per spec.md §1's query-planner exclusion): when bound for
// a given (group-by columns, aggregate column) pair, the maintainer
// consults it before falling through the index-assisted ladder.
type FallbackMinMaxPlan interface {
	Recompute(groupKey key.Key, aggColumn int, dir Direction, exclude key.RowPointer) (tuple.Value, bool, error)
}

// RecomputeSource supplies the three index-assisted/sequential rungs of the
// MIN/MAX recompute ladder, plus an optional fallback plan lookup. Only
// SequentialScan is expected to always succeed; IndexSeek and GroupScan may
// report ok=false when no suitable index exists, and FallbackPlan may
// return nil when none is bound.
type RecomputeSource interface {
	FallbackPlan(groupByColumns []int, aggColumn int) FallbackMinMaxPlan
	IndexSeek(groupKey key.Key, aggColumn int, dir Direction, exclude key.RowPointer) (tuple.Value, bool, error)
	GroupScan(groupKey key.Key, aggColumn int, dir Direction, exclude key.RowPointer) (tuple.Value, bool, error)
	SequentialScan(groupKey key.Key, aggColumn int, dir Direction, exclude key.RowPointer) (tuple.Value, bool, error)
}

// aggState is one aggregate column's running accumulator for one group.
type aggState struct {
	spec       AggregateSpec
	colType    schema.ColumnType
	sum        float64
	sumInt     int64
	isInteger  bool
	count      int64
	extreme    tuple.Value
	hasExtreme bool
}

func newAggState(spec AggregateSpec, colType schema.ColumnType) aggState {
	return aggState{spec: spec, colType: colType, isInteger: colType.IsInteger()}
}

func (a *aggState) add(v tuple.Value) {
	if v.Null {
		return
	}
	switch a.spec.Kind {
	case Sum:
		if a.isInteger {
			a.sumInt += v.Int
		} else {
			a.sum += v.Float
		}
	case Count:
		a.count++
	case Min:
		if !a.hasExtreme || v.Compare(a.extreme, a.colType) < 0 {
			a.extreme, a.hasExtreme = v, true
		}
	case Max:
		if !a.hasExtreme || v.Compare(a.extreme, a.colType) > 0 {
			a.extreme, a.hasExtreme = v, true
		}
	}
}

func (a *aggState) remove(v tuple.Value) {
	if v.Null {
		return
	}
	switch a.spec.Kind {
	case Sum:
		if a.isInteger {
			a.sumInt -= v.Int
		} else {
			a.sum -= v.Float
		}
	case Count:
		a.count--
	}
}

// value reads the aggregate's current reportable value.
func (a *aggState) value() tuple.Value {
	switch a.spec.Kind {
	case Sum:
		if a.isInteger {
			return tuple.IntValue(a.sumInt)
		}
		return tuple.FloatValue(a.sum)
	case Count:
		return tuple.IntValue(a.count)
	default:
		if !a.hasExtreme {
			return tuple.Value{Null: true}
		}
		return a.extreme
	}
}

// viewRow is one group's summary state plus its count-star hidden column.
type viewRow struct {
	groupKey  key.Key
	countStar int64
	aggs      []aggState
}

// MaterializedView is the maintainer of spec.md §4.5: it holds no
// reference to the summary table's physical storage (that is the caller's
// concern, e.g. a storage.Table kept in lockstep), only the running
// per-group state needed to answer "what does the view show right now".
type MaterializedView struct {
	baseSchema  *schema.Schema
	groupByCols []int
	aggregates  []AggregateSpec
	predicate   RowPredicate
	extractKey  index.KeyExtractor
	source      RecomputeSource

	rows *swiss.Map[uint64, []*viewRow]

	host hostbridge.Host
}

// SetHost attaches the host bridge recompute reports fatal recompute-ladder
// exhaustion through (spec.md §6). Optional; a nil host disables it.
func (v *MaterializedView) SetHost(h hostbridge.Host) { v.host = h }

// New builds a maintainer over baseSchema's groupByCols/aggregates. source
// may be nil only if the view's aggregates never include Min/Max, since
// only those require a recompute ladder on deletion of the stored extreme.
func New(baseSchema *schema.Schema, groupByCols []int, aggregates []AggregateSpec, predicate RowPredicate, source RecomputeSource) *MaterializedView {
	return &MaterializedView{
		baseSchema:  baseSchema,
		groupByCols: groupByCols,
		aggregates:  aggregates,
		predicate:   predicate,
		extractKey:  index.NewKeyExtractor(baseSchema, groupByCols, nil),
		source:      source,
		rows:        swiss.New[uint64, []*viewRow](16),
	}
}

func (v *MaterializedView) evalPredicate(t *tuple.Tuple) (bool, error) {
	if v.predicate == nil {
		return true, nil
	}
	return v.predicate(t)
}

func (v *MaterializedView) groupHasNull(t *tuple.Tuple) (bool, error) {
	for _, c := range v.groupByCols {
		val, err := t.Get(c)
		if err != nil {
			return false, err
		}
		if val.Null {
			return true, nil
		}
	}
	return false, nil
}

func (v *MaterializedView) findRow(k key.Key) (*viewRow, []*viewRow, bool) {
	bucket, ok := v.rows.Get(k.HashCode())
	if !ok {
		return nil, nil, false
	}
	for _, r := range bucket {
		if r.groupKey.Equal(k) {
			return r, bucket, true
		}
	}
	return nil, bucket, false
}

// Insert applies a base-table insert of t to the view (spec.md §4.5's
// insert path).
func (v *MaterializedView) Insert(t *tuple.Tuple) error {
	ok, err := v.evalPredicate(t)
	if err != nil || !ok {
		return err
	}
	groupKey, err := v.extractKey(t)
	if err != nil {
		return err
	}
	if row, _, found := v.findRow(groupKey); found {
		row.countStar++
		for i := range row.aggs {
			val, err := t.Get(row.aggs[i].spec.Column)
			if err != nil {
				return err
			}
			row.aggs[i].add(val)
		}
		return nil
	}
	row := &viewRow{groupKey: groupKey, countStar: 1, aggs: make([]aggState, len(v.aggregates))}
	for i, spec := range v.aggregates {
		row.aggs[i] = newAggState(spec, v.baseSchema.Column(spec.Column).Type)
		val, err := t.Get(spec.Column)
		if err != nil {
			return err
		}
		row.aggs[i].add(val)
	}
	h := groupKey.HashCode()
	bucket, _ := v.rows.Get(h)
	v.rows.Put(h, append(bucket, row))
	return nil
}

// Delete applies a base-table delete of t (identified by ptr, for the
// index-assisted recompute ladder's exclusion argument) to the view
// (spec.md §4.5's delete path).
func (v *MaterializedView) Delete(t *tuple.Tuple, ptr key.RowPointer) error {
	ok, err := v.evalPredicate(t)
	if err != nil || !ok {
		return err
	}
	groupKey, err := v.extractKey(t)
	if err != nil {
		return err
	}
	row, bucket, found := v.findRow(groupKey)
	if !found {
		return corerr.Fatal("materialized view: delete for group not present in view")
	}
	row.countStar--
	if row.countStar == 0 {
		v.removeRow(groupKey, bucket)
		return nil
	}
	for i := range row.aggs {
		val, err := t.Get(row.aggs[i].spec.Column)
		if err != nil {
			return err
		}
		needsRecompute := row.aggs[i].spec.Kind == Min || row.aggs[i].spec.Kind == Max
		if needsRecompute && !val.Null && row.aggs[i].hasExtreme && val.Equal(row.aggs[i].extreme, row.aggs[i].colType) {
			fresh, err := v.recompute(t, groupKey, row.aggs[i].spec, ptr)
			if err != nil {
				return err
			}
			row.aggs[i].extreme, row.aggs[i].hasExtreme = fresh, !fresh.Null
			continue
		}
		row.aggs[i].remove(val)
	}
	return nil
}

func (v *MaterializedView) removeRow(k key.Key, bucket []*viewRow) {
	h := k.HashCode()
	for i, r := range bucket {
		if r.groupKey.Equal(k) {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		v.rows.Delete(h)
	} else {
		v.rows.Put(h, bucket)
	}
}

// Update is modeled as delete-then-insert on the same group (spec.md
// §4.5's update path); when oldT and newT project to the same group and
// neither deletion drains the group to zero, the net effect is
// observably identical to an in-place adjustment.
func (v *MaterializedView) Update(oldT, newT *tuple.Tuple, ptr key.RowPointer) error {
	if err := v.Delete(oldT, ptr); err != nil {
		return err
	}
	return v.Insert(newT)
}

// recompute runs the four-rung ladder spec.md §4.5 step 3 describes for a
// MIN/MAX column whose stored extreme was just deleted.
func (v *MaterializedView) recompute(t *tuple.Tuple, groupKey key.Key, spec AggregateSpec, exclude key.RowPointer) (tuple.Value, error) {
	if v.source == nil {
		err := corerr.Fatal("materialized view: MIN/MAX recompute needed but no RecomputeSource configured")
		if v.host != nil {
			v.host.ReportFatal(err.Error())
		}
		return tuple.Value{}, err
	}
	dir := Ascending
	if spec.Kind == Max {
		dir = Descending
	}
	hasNull, err := v.groupHasNull(t)
	if err != nil {
		return tuple.Value{}, err
	}
	// A null group-by value defeats the integer-packed ordered-tree key's
	// null representation (see the Open Question this elides), so the
	// plan-based rung is skipped whenever any group-by value is null.
	if !hasNull {
		if plan := v.source.FallbackPlan(v.groupByCols, spec.Column); plan != nil {
			if val, ok, err := plan.Recompute(groupKey, spec.Column, dir, exclude); err != nil {
				return tuple.Value{}, err
			} else if ok {
				return val, nil
			}
		}
	}
	if val, ok, err := v.source.IndexSeek(groupKey, spec.Column, dir, exclude); err != nil {
		return tuple.Value{}, err
	} else if ok {
		return val, nil
	}
	if val, ok, err := v.source.GroupScan(groupKey, spec.Column, dir, exclude); err != nil {
		return tuple.Value{}, err
	} else if ok {
		return val, nil
	}
	val, _, err := v.source.SequentialScan(groupKey, spec.Column, dir, exclude)
	return val, err
}

// Snapshot reports a group's current aggregate values, for testing and for
// rendering the summary table. The returned slice is ordered the same as
// the aggregates passed to New.
func (v *MaterializedView) Snapshot(t *tuple.Tuple) ([]tuple.Value, int64, bool, error) {
	groupKey, err := v.extractKey(t)
	if err != nil {
		return nil, 0, false, err
	}
	row, _, found := v.findRow(groupKey)
	if !found {
		return nil, 0, false, nil
	}
	out := make([]tuple.Value, len(row.aggs))
	for i := range row.aggs {
		out[i] = row.aggs[i].value()
	}
	return out, row.countStar, true, nil
}

// GroupCount reports how many distinct groups are currently present.
func (v *MaterializedView) GroupCount() int {
	count := 0
	v.rows.All(func(_ uint64, bucket []*viewRow) bool {
		count += len(bucket)
		return true
	})
	return count
}
