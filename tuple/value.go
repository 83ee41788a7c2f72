// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tuple

import (
	"bytes"
	"math"

	"github.com/partitiondb/core/schema"
)

// Value is the tagged, in-memory representation of one column's content,
// used wherever a typed value needs to move independently of a tuple's
// packed bytes: key extraction, view aggregate accumulation, and the
// partition router's input.
type Value struct {
	Null     bool
	Int      int64   // TinyInt/SmallInt/Integer/BigInt/Timestamp
	Float    float64 // Float
	Bool     bool
	Bytes    []byte // Varchar/Varbinary (Varchar kept as raw UTF-8 bytes)
	GeoPoint [2]float64
	GeoPoly  []byte // opaque WKB-ish encoding; interpreted by index/covering
}

// NullValue is the canonical null Value.
func NullValue() Value { return Value{Null: true} }

// IntValue builds a non-null integer Value.
func IntValue(v int64) Value { return Value{Int: v} }

// FloatValue builds a non-null float Value.
func FloatValue(v float64) Value { return Value{Float: v} }

// BoolValue builds a non-null boolean Value.
func BoolValue(v bool) Value { return Value{Bool: v} }

// BytesValue builds a non-null Varchar/Varbinary Value.
func BytesValue(b []byte) Value { return Value{Bytes: b} }

// Equal reports whether two values of the same column type are equal.
// Two nulls compare equal here, as index and view code in this module
// needs for grouping and key comparison, consistent with the original
// engine's index key behavior; callers that need SQL null semantics
// (where NULL = NULL is unknown, not true) special-case it themselves.
// Geography values always compare unequal.
func (v Value) Equal(o Value, t schema.ColumnType) bool {
	if v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch {
	case t.IsInteger():
		return v.Int == o.Int
	case t == schema.Float:
		return v.Float == o.Float
	case t == schema.Boolean:
		return v.Bool == o.Bool
	case t == schema.Varchar, t == schema.Varbinary:
		return bytes.Equal(v.Bytes, o.Bytes)
	default:
		return false
	}
}

// Compare orders two values of the same column type. Null sorts before
// every non-null value, matching the ordered-index convention this module
// uses unless a caller explicitly asks for "null as max" (spec.md
// §4.4.2's upper_bound_null_as_max).
func (v Value) Compare(o Value, t schema.ColumnType) int {
	if v.Null && o.Null {
		return 0
	}
	if v.Null {
		return -1
	}
	if o.Null {
		return 1
	}
	switch {
	case t.IsInteger():
		switch {
		case v.Int < o.Int:
			return -1
		case v.Int > o.Int:
			return 1
		default:
			return 0
		}
	case t == schema.Float:
		switch {
		case v.Float < o.Float:
			return -1
		case v.Float > o.Float:
			return 1
		default:
			return 0
		}
	case t == schema.Boolean:
		if v.Bool == o.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case t == schema.Varchar, t == schema.Varbinary:
		return bytes.Compare(v.Bytes, o.Bytes)
	default:
		return 0
	}
}

// rawBits returns a uint64 encoding of a numeric value. Floats use the
// IEEE-754 total-order trick, so their unsigned order equals numeric
// order; integers are returned as their two's-complement bits with no
// bias, so negative integers sort above positive ones. The Ints key
// packer does not use it (it biases with key.biasInto instead).
func (v Value) rawBits(t schema.ColumnType) uint64 {
	if t == schema.Float {
		bits := math.Float64bits(v.Float)
		if bits&(1<<63) != 0 {
			return ^bits
		}
		return bits | (1 << 63)
	}
	return uint64(v.Int)
}
