// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package serialize

import (
	"testing"

	"github.com/partitiondb/core/internal/corerr"
	"github.com/stretchr/testify/require"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewCopyWriter(64)
	require.NoError(t, w.WriteByte(0x7f))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteShort(-1234))
	require.NoError(t, w.WriteInt(-123456789))
	require.NoError(t, w.WriteLong(1234567890123))
	require.NoError(t, w.WriteFloat(3.5))
	require.NoError(t, w.WriteDouble(2.71828))
	require.NoError(t, w.WriteTextString("hello", false))
	require.NoError(t, w.WriteBinaryString([]byte{1, 2, 3}, false))
	require.NoError(t, w.WriteTextString("", true))

	r := NewReader(w.Bytes())
	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), b)

	boolVal, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, boolVal)

	short, err := r.ReadShort()
	require.NoError(t, err)
	require.EqualValues(t, -1234, short)

	i, err := r.ReadInt()
	require.NoError(t, err)
	require.EqualValues(t, -123456789, i)

	l, err := r.ReadLong()
	require.NoError(t, err)
	require.EqualValues(t, 1234567890123, l)

	f, err := r.ReadFloat()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f)

	d, err := r.ReadDouble()
	require.NoError(t, err)
	require.Equal(t, 2.71828, d)

	s, isNull, err := r.ReadTextString()
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, "hello", s)

	bs, isNull, err := r.ReadBinaryString()
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, []byte{1, 2, 3}, bs)

	_, isNull, err = r.ReadTextString()
	require.NoError(t, err)
	require.True(t, isNull)

	require.Equal(t, 0, r.Remaining())
}

func TestVarIntZigZagRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 1000000, -1000000, 1<<40 - 1, -(1 << 40)}
	w := NewCopyWriter(128)
	for _, v := range values {
		require.NoError(t, w.WriteVarInt(v))
	}
	r := NewReader(w.Bytes())
	for _, want := range values {
		got, err := r.ReadVarInt()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReaderUnderflowIsInvalidMessage(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.ReadInt()
	require.Error(t, err)
	var ce *corerr.CoreError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corerr.KindInvalidMessage, ce.Kind())
}

func TestReferenceWriterOverflow(t *testing.T) {
	w := NewReferenceWriter(make([]byte, 0, 3))
	require.NoError(t, w.WriteByte(1))
	require.NoError(t, w.WriteByte(2))
	require.NoError(t, w.WriteByte(3))
	err := w.WriteByte(4)
	require.Error(t, err)
	var ce *corerr.CoreError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corerr.KindOutputBufferOverflow, ce.Kind())
	require.Equal(t, []byte{1, 2, 3}, w.Bytes())
}

func TestCopyWriterGrowsPastInitialCapacity(t *testing.T) {
	w := NewCopyWriter(1)
	for i := 0; i < 1000; i++ {
		require.NoError(t, w.WriteInt(int32(i)))
	}
	require.Equal(t, 4000, w.Len())
	r := NewReader(w.Bytes())
	for i := 0; i < 1000; i++ {
		v, err := r.ReadInt()
		require.NoError(t, err)
		require.EqualValues(t, i, v)
	}
}

func TestFallbackWriterReallocatesOnceThenFails(t *testing.T) {
	var movedTo []byte
	w := NewFallbackWriter(make([]byte, 0, 2), func(newBuf []byte) {
		movedTo = newBuf
	})
	require.NoError(t, w.WriteByte(1))
	require.NoError(t, w.WriteByte(2))
	// This write overflows the original 2-byte buffer and triggers the
	// one-time ~50MiB reallocation.
	require.NoError(t, w.WriteByte(3))
	require.NotNil(t, movedTo)
	require.Equal(t, w.Bytes(), movedTo[:w.Len()])

	// Force a second overflow by writing past the fallback buffer; a
	// second reallocation is never attempted.
	big := make([]byte, fallbackReallocSize+1)
	err := w.WriteRawBytes(big)
	require.Error(t, err)
	var ce *corerr.CoreError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, corerr.KindOutputBufferOverflow, ce.Kind())
}

func TestWriteVarBinaryPatchesLengthPrefix(t *testing.T) {
	w := NewCopyWriter(32)
	require.NoError(t, w.WriteVarBinary(func(inner Writer) error {
		return inner.WriteRawBytes([]byte("payload"))
	}))
	r := NewReader(w.Bytes())
	length, err := r.ReadInt()
	require.NoError(t, err)
	require.EqualValues(t, len("payload"), length)
	b, err := r.ReadBytes(int(length))
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
}

func TestLimitAndUnread(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, r.Limit(2))
	require.Equal(t, 4, r.Remaining())
	_, err := r.ReadBytes(5)
	require.Error(t, err)
	b, err := r.ReadBytes(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, b)
	require.NoError(t, r.Unread(2))
	require.Equal(t, 2, r.Remaining())
}

func TestLittleEndianReaderOrder(t *testing.T) {
	w := NewCopyWriter(8)
	require.NoError(t, w.WriteInt(0x01020304))
	be := NewReader(w.Bytes())
	v, err := be.ReadInt()
	require.NoError(t, err)
	require.EqualValues(t, 0x01020304, v)

	le := NewReaderLE(w.Bytes())
	leVal, err := le.ReadInt()
	require.NoError(t, err)
	require.NotEqual(t, v, leVal)
}
