// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package index

import (
	"github.com/partitiondb/core/index/key"
	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/tuple"
)

// NewKeyExtractor builds the KeyExtractor a container uses, applying
// spec.md §4.4.1's key-selection policy: the smallest Ints key that
// fits, else the smallest Generic key, wrapped in Generic-persistent
// when any indexed column is a variable-length type requiring owned
// storage, else a Tuple key fallback. pool is consulted only for the
// Generic-persistent variant; it may be nil when no indexed column is
// variable-length.
func NewKeyExtractor(s *schema.Schema, columns []int, pool tuple.Pool) KeyExtractor {
	types := make([]schema.ColumnType, len(columns))
	for i, c := range columns {
		types[i] = s.Column(c).Type
	}
	ks := key.Schema{Types: types}

	if width, ok := ks.FitsInts(); ok {
		return func(t *tuple.Tuple) (key.Key, error) {
			values, err := extractValues(t, columns)
			if err != nil {
				return nil, err
			}
			return key.NewIntsKey(values, types, width)
		}
	}

	totalWidth := 0
	hasVariableLength := false
	for _, c := range columns {
		col := s.Column(c)
		totalWidth += col.InlineWidth()
		if col.Type.IsVariableLength() {
			hasVariableLength = true
		}
	}
	if sizeClass, ok := ks.FitsGeneric(totalWidth); ok {
		if hasVariableLength {
			return func(t *tuple.Tuple) (key.Key, error) {
				values, err := extractValues(t, columns)
				if err != nil {
					return nil, err
				}
				return key.NewGenericPersistentKey(values, types, sizeClass, pool)
			}
		}
		return func(t *tuple.Tuple) (key.Key, error) {
			values, err := extractValues(t, columns)
			if err != nil {
				return nil, err
			}
			return key.NewGenericKey(values, types, sizeClass), nil
		}
	}

	// Fall back to a Tuple key: indirection through the base tuple,
	// deferring extraction to comparison time.
	return func(t *tuple.Tuple) (key.Key, error) {
		return key.TupleKey{Tuple: t, Columns: columns, Types: types}, nil
	}
}

func extractValues(t *tuple.Tuple, columns []int) ([]tuple.Value, error) {
	values := make([]tuple.Value, len(columns))
	for i, c := range columns {
		v, err := t.Get(c)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
