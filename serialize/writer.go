// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package serialize

import (
	"encoding/binary"
	"math"

	"github.com/partitiondb/core/internal/corerr"
)

// growStep32MiB is the large-write growth increment a Copy/Fallback writer
// uses once doubling would overshoot it, per spec.md §4.1.
const growStep32MiB = 32 << 20

// fallbackReallocSize is the size a Fallback writer reallocates to, once,
// on its first overflow.
const fallbackReallocSize = 50 << 20

// Writer is the dual of Reader: every write operation below has a
// corresponding read operation. The three concrete flavors (Reference,
// Copy, Fallback) share this interface but differ in allocation policy on
// overflow; none of them use a vtable-style hierarchy beyond this single
// interface, per the monomorphize-at-construction-time design note.
type Writer interface {
	WriteByte(b byte) error
	WriteBool(b bool) error
	WriteShort(v int16) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	WriteFloat(v float32) error
	WriteDouble(v float64) error
	WriteVarInt(v int64) error
	WriteRawBytes(b []byte) error
	WriteTextString(s string, isNull bool) error
	WriteBinaryString(b []byte, isNull bool) error

	// WriteVarBinary reserves a 4-byte length prefix, invokes fn with this
	// Writer, then patches the prefix with the number of bytes fn wrote.
	WriteVarBinary(fn func(Writer) error) error

	// ReserveBytes reserves n zero bytes and returns their offset, to be
	// patched later via WriteBytesAt. This is the only in-place mutation
	// primitive writers expose.
	ReserveBytes(n int) (offset int, err error)
	WriteBytesAt(offset int, b []byte) error

	// Bytes returns the bytes written so far. For a Reference writer this
	// aliases the caller-supplied buffer; for Copy/Fallback it aliases the
	// writer's owned buffer, which may be reallocated by later writes.
	Bytes() []byte
	Len() int
}

// growCapacity computes the next backing-array capacity for a growable
// writer: doubling normally, but stepping by a flat 32MiB once doubling
// would itself overshoot that step, so one huge write_var_binary call
// doesn't balloon capacity far past what it needs.
func growCapacity(curCap, needed int) int {
	newCap := curCap
	if newCap == 0 {
		newCap = 256
	}
	for newCap < needed {
		if newCap >= growStep32MiB {
			newCap += growStep32MiB
		} else {
			newCap *= 2
		}
	}
	return newCap
}

// writerCore implements every Writer method in terms of one primitive,
// ensureRoom(n), that each concrete flavor supplies: Reference fails,
// Copy grows unconditionally, Fallback grows exactly once before failing.
type writerCore struct {
	buf        []byte
	order      binary.ByteOrder
	ensureRoom func(w *writerCore, n int) error
	// facade is the concrete wrapper (ReferenceWriter/CopyWriter/
	// FallbackWriter) embedding this core, set once at construction so
	// recursive calls like WriteVarBinary's fn(...) observe the same
	// overflow policy rather than a bare writerCore.
	facade Writer
}

func (w *writerCore) Len() int      { return len(w.buf) }
func (w *writerCore) Bytes() []byte { return w.buf }

func (w *writerCore) encodeShort(v int16) []byte {
	var b [2]byte
	w.order.PutUint16(b[:], uint16(v))
	return b[:]
}
func (w *writerCore) encodeInt(v int32) []byte {
	var b [4]byte
	w.order.PutUint32(b[:], uint32(v))
	return b[:]
}
func (w *writerCore) encodeLong(v int64) []byte {
	var b [8]byte
	w.order.PutUint64(b[:], uint64(v))
	return b[:]
}
func (w *writerCore) encodeFloat(v float32) []byte  { return w.encodeInt(int32(math.Float32bits(v))) }
func (w *writerCore) encodeDouble(v float64) []byte { return w.encodeLong(int64(math.Float64bits(v))) }

func (w *writerCore) encodeVarInt(v int64) []byte {
	u := zigzagEncode(v)
	var out []byte
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func (w *writerCore) raw(b []byte) error {
	if err := w.ensureRoom(w, len(b)); err != nil {
		return err
	}
	w.buf = append(w.buf, b...)
	return nil
}

func (w *writerCore) WriteByte(b byte) error { return w.raw([]byte{b}) }

func (w *writerCore) WriteBool(b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func (w *writerCore) WriteShort(v int16) error   { return w.raw(w.encodeShort(v)) }
func (w *writerCore) WriteInt(v int32) error     { return w.raw(w.encodeInt(v)) }
func (w *writerCore) WriteLong(v int64) error    { return w.raw(w.encodeLong(v)) }
func (w *writerCore) WriteFloat(v float32) error { return w.raw(w.encodeFloat(v)) }
func (w *writerCore) WriteDouble(v float64) error { return w.raw(w.encodeDouble(v)) }
func (w *writerCore) WriteVarInt(v int64) error  { return w.raw(w.encodeVarInt(v)) }
func (w *writerCore) WriteRawBytes(b []byte) error { return w.raw(b) }

func (w *writerCore) writeLengthPrefixed(b []byte, isNull bool) error {
	if isNull {
		return w.WriteInt(-1)
	}
	if err := w.WriteInt(int32(len(b))); err != nil {
		return err
	}
	return w.raw(b)
}

func (w *writerCore) WriteTextString(s string, isNull bool) error {
	if isNull {
		return w.WriteInt(-1)
	}
	return w.writeLengthPrefixed([]byte(s), false)
}

func (w *writerCore) WriteBinaryString(b []byte, isNull bool) error {
	return w.writeLengthPrefixed(b, isNull)
}

func (w *writerCore) WriteVarBinary(fn func(Writer) error) error {
	off, err := w.reserve(4)
	if err != nil {
		return err
	}
	before := len(w.buf)
	if err := fn(w.facade); err != nil {
		return err
	}
	written := len(w.buf) - before
	return w.writeAt(off, w.encodeInt(int32(written)))
}

func (w *writerCore) reserve(n int) (int, error) {
	if err := w.ensureRoom(w, n); err != nil {
		return 0, err
	}
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return off, nil
}

func (w *writerCore) writeAt(offset int, b []byte) error {
	if offset < 0 || offset+len(b) > len(w.buf) {
		return corerr.New(corerr.KindOutputBufferOverflow, "write_bytes_at out of range")
	}
	copy(w.buf[offset:], b)
	return nil
}

// ReserveBytes and WriteBytesAt expose reserve and writeAt, for callers
// that patch a length prefix after writing the bytes it covers.
func (w *writerCore) ReserveBytes(n int) (int, error)     { return w.reserve(n) }
func (w *writerCore) WriteBytesAt(offset int, b []byte) error { return w.writeAt(offset, b) }
