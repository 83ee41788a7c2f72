// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tuple

import (
	"testing"

	"github.com/partitiondb/core/schema"
	"github.com/partitiondb/core/serialize"
	"github.com/stretchr/testify/require"
)

// memPool is a trivial Pool backed by a Go map, used only in tests; a real
// table uses the block-allocated arena in package storage.
type memPool struct {
	next  Ref
	slots map[Ref][]byte
}

func newMemPool() *memPool { return &memPool{slots: make(map[Ref][]byte)} }

func (p *memPool) Alloc(n int) (Ref, []byte, error) {
	p.next++
	b := make([]byte, n)
	p.slots[p.next] = b
	return p.next, b, nil
}
func (p *memPool) Bytes(r Ref) []byte { return p.slots[r] }
func (p *memPool) Free(r Ref)         { delete(p.slots, r) }
func (p *memPool) Dup(r Ref) (Ref, error) {
	src := p.slots[r]
	cp := append([]byte(nil), src...)
	p.next++
	p.slots[p.next] = cp
	return p.next, nil
}

func ordersSchema() *schema.Schema {
	return schema.New(
		schema.Column{Name: "id", Type: schema.Integer, Inline: true},
		schema.Column{Name: "name", Type: schema.Varchar, DeclaredLength: 32, Inline: true, Nullable: true},
		schema.Column{Name: "total", Type: schema.Float, Inline: true},
		schema.Column{Name: "notes", Type: schema.Varbinary, DeclaredLength: 4096, Inline: false, Nullable: true},
	)
}

func newTuple(t *testing.T, s *schema.Schema, pool Pool) *Tuple {
	t.Helper()
	return New(make([]byte, s.InlineLength(false)), s, pool)
}

func TestHeaderFlags(t *testing.T) {
	s := ordersSchema()
	tup := newTuple(t, s, newMemPool())
	require.False(t, tup.IsActive())
	tup.SetActive(true)
	tup.SetDirty(true)
	require.True(t, tup.IsActive())
	require.True(t, tup.IsDirty())
	require.False(t, tup.IsPendingDelete())
	tup.SetPendingDelete(true)
	require.True(t, tup.IsPendingDelete())
	tup.SetActive(false)
	require.False(t, tup.IsActive())
	require.True(t, tup.IsDirty()) // unrelated flags are independent
}

func TestGetSetFixedWidthColumns(t *testing.T) {
	s := ordersSchema()
	tup := newTuple(t, s, newMemPool())
	require.NoError(t, tup.Set(0, IntValue(42)))
	require.NoError(t, tup.Set(2, FloatValue(3.25)))

	v, err := tup.Get(0)
	require.NoError(t, err)
	require.False(t, v.Null)
	require.EqualValues(t, 42, v.Int)

	v, err = tup.Get(2)
	require.NoError(t, err)
	require.Equal(t, 3.25, v.Float)
}

func TestInlineVariableLengthColumn(t *testing.T) {
	s := ordersSchema()
	tup := newTuple(t, s, newMemPool())
	require.NoError(t, tup.Set(1, BytesValue([]byte("acme corp"))))
	v, err := tup.Get(1)
	require.NoError(t, err)
	require.False(t, v.Null)
	require.Equal(t, "acme corp", string(v.Bytes))

	require.NoError(t, tup.Set(1, NullValue()))
	require.True(t, tup.IsNull(1))
	v, err = tup.Get(1)
	require.NoError(t, err)
	require.True(t, v.Null)
}

func TestNonInlinedColumnRoundTripsThroughPool(t *testing.T) {
	s := ordersSchema()
	pool := newMemPool()
	tup := newTuple(t, s, pool)
	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, tup.Set(3, BytesValue(payload)))
	require.False(t, tup.IsNull(3))
	v, err := tup.Get(3)
	require.NoError(t, err)
	require.Equal(t, payload, v.Bytes)

	// Overwriting frees the old allocation and allocates a new one.
	require.NoError(t, tup.Set(3, BytesValue([]byte("short"))))
	v, err = tup.Get(3)
	require.NoError(t, err)
	require.Equal(t, "short", string(v.Bytes))

	require.NoError(t, tup.Set(3, NullValue()))
	require.True(t, tup.IsNull(3))
}

func TestNotNullableColumnRejectsNull(t *testing.T) {
	s := ordersSchema()
	tup := newTuple(t, s, newMemPool())
	err := tup.Set(0, NullValue())
	require.Error(t, err)
}

func TestCopyDeepCopiesOutOfLineColumns(t *testing.T) {
	s := ordersSchema()
	pool := newMemPool()
	src := newTuple(t, s, pool)
	require.NoError(t, src.Set(0, IntValue(7)))
	require.NoError(t, src.Set(3, BytesValue([]byte("payload"))))

	dst := newTuple(t, s, pool)
	require.NoError(t, dst.Copy(src))

	eq, err := src.Equal(dst)
	require.NoError(t, err)
	require.True(t, eq)

	// Mutating dst's out-of-line bytes must not affect src's allocation.
	require.NoError(t, dst.Set(3, BytesValue([]byte("different"))))
	v, err := src.Get(3)
	require.NoError(t, err)
	require.Equal(t, "payload", string(v.Bytes))
}

func TestAddressIsStableAcrossReads(t *testing.T) {
	s := ordersSchema()
	tup := newTuple(t, s, newMemPool())
	a1 := tup.Address()
	require.NoError(t, tup.Set(0, IntValue(1)))
	a2 := tup.Address()
	require.Equal(t, a1, a2)
}

func TestDefaultWireRoundTrip(t *testing.T) {
	s := ordersSchema()
	pool := newMemPool()
	tup := newTuple(t, s, pool)
	require.NoError(t, tup.Set(0, IntValue(101)))
	require.NoError(t, tup.Set(1, NullValue()))
	require.NoError(t, tup.Set(2, FloatValue(9.5)))
	require.NoError(t, tup.Set(3, BytesValue([]byte("hello wire"))))

	w := serialize.NewCopyWriter(64)
	require.NoError(t, tup.WriteDefault(w))

	r := serialize.NewReader(w.Bytes())
	decoded, err := ReadDefault(r, s, pool)
	require.NoError(t, err)

	eq, err := tup.Equal(decoded)
	require.NoError(t, err)
	require.True(t, eq)
	require.True(t, decoded.IsNull(1))
}

func TestDestroyFreesOutOfLineReferences(t *testing.T) {
	s := ordersSchema()
	pool := newMemPool()
	tup := newTuple(t, s, pool)
	require.NoError(t, tup.Set(3, BytesValue([]byte("freed on destroy"))))
	tup.SetActive(true)
	tup.Destroy()
	require.False(t, tup.IsActive())
	require.Equal(t, byte(0), tup.HeaderByte())
	require.Empty(t, pool.slots)
}
