// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package serialize

import (
	"encoding/binary"

	"github.com/partitiondb/core/internal/corerr"
)

// ReferenceWriter writes into a caller-supplied, fixed-capacity buffer. A
// write that would exceed the buffer's capacity fails with
// corerr.KindOutputBufferOverflow and leaves the buffer unchanged; it
// never reallocates.
type ReferenceWriter struct {
	core writerCore
	cap  int
}

// NewReferenceWriter wraps buf (used as the fixed backing store, length
// zero, capacity cap(buf)) for big-endian writes.
func NewReferenceWriter(buf []byte) *ReferenceWriter {
	w := &ReferenceWriter{cap: cap(buf)}
	w.core = writerCore{buf: buf[:0], order: binary.BigEndian, ensureRoom: referenceEnsureRoom}
	w.core.facade = w
	return w
}

func referenceEnsureRoom(w *writerCore, n int) error {
	rw := w.facade.(*ReferenceWriter)
	if len(w.buf)+n > rw.cap {
		return corerr.New(corerr.KindOutputBufferOverflow,
			"reference writer out of space: need %d more bytes, have %d/%d", n, len(w.buf), rw.cap)
	}
	return nil
}

func (w *ReferenceWriter) WriteByte(b byte) error                  { return w.core.WriteByte(b) }
func (w *ReferenceWriter) WriteBool(b bool) error                  { return w.core.WriteBool(b) }
func (w *ReferenceWriter) WriteShort(v int16) error                { return w.core.WriteShort(v) }
func (w *ReferenceWriter) WriteInt(v int32) error                  { return w.core.WriteInt(v) }
func (w *ReferenceWriter) WriteLong(v int64) error                 { return w.core.WriteLong(v) }
func (w *ReferenceWriter) WriteFloat(v float32) error              { return w.core.WriteFloat(v) }
func (w *ReferenceWriter) WriteDouble(v float64) error             { return w.core.WriteDouble(v) }
func (w *ReferenceWriter) WriteVarInt(v int64) error               { return w.core.WriteVarInt(v) }
func (w *ReferenceWriter) WriteRawBytes(b []byte) error            { return w.core.WriteRawBytes(b) }
func (w *ReferenceWriter) WriteTextString(s string, isNull bool) error {
	return w.core.WriteTextString(s, isNull)
}
func (w *ReferenceWriter) WriteBinaryString(b []byte, isNull bool) error {
	return w.core.WriteBinaryString(b, isNull)
}
func (w *ReferenceWriter) WriteVarBinary(fn func(Writer) error) error { return w.core.WriteVarBinary(fn) }
func (w *ReferenceWriter) ReserveBytes(n int) (int, error)            { return w.core.ReserveBytes(n) }
func (w *ReferenceWriter) WriteBytesAt(offset int, b []byte) error    { return w.core.WriteBytesAt(offset, b) }
func (w *ReferenceWriter) Bytes() []byte                              { return w.core.Bytes() }
func (w *ReferenceWriter) Len() int                                   { return w.core.Len() }

// CopyWriter writes into an owned, growable buffer: it doubles capacity
// on overflow, stepping by a flat 32MiB increment once doubling would
// itself overshoot that step (spec.md §4.1).
type CopyWriter struct {
	core writerCore
}

// NewCopyWriter constructs a CopyWriter with an initial capacity hint.
func NewCopyWriter(capacityHint int) *CopyWriter {
	w := &CopyWriter{}
	w.core = writerCore{buf: make([]byte, 0, capacityHint), order: binary.BigEndian, ensureRoom: copyEnsureRoom}
	w.core.facade = w
	return w
}

func copyEnsureRoom(w *writerCore, n int) error {
	needed := len(w.buf) + n
	if needed <= cap(w.buf) {
		return nil
	}
	newCap := growCapacity(cap(w.buf), needed)
	grown := make([]byte, len(w.buf), newCap)
	copy(grown, w.buf)
	w.buf = grown
	return nil
}

func (w *CopyWriter) WriteByte(b byte) error                  { return w.core.WriteByte(b) }
func (w *CopyWriter) WriteBool(b bool) error                  { return w.core.WriteBool(b) }
func (w *CopyWriter) WriteShort(v int16) error                { return w.core.WriteShort(v) }
func (w *CopyWriter) WriteInt(v int32) error                  { return w.core.WriteInt(v) }
func (w *CopyWriter) WriteLong(v int64) error                 { return w.core.WriteLong(v) }
func (w *CopyWriter) WriteFloat(v float32) error              { return w.core.WriteFloat(v) }
func (w *CopyWriter) WriteDouble(v float64) error             { return w.core.WriteDouble(v) }
func (w *CopyWriter) WriteVarInt(v int64) error               { return w.core.WriteVarInt(v) }
func (w *CopyWriter) WriteRawBytes(b []byte) error            { return w.core.WriteRawBytes(b) }
func (w *CopyWriter) WriteTextString(s string, isNull bool) error {
	return w.core.WriteTextString(s, isNull)
}
func (w *CopyWriter) WriteBinaryString(b []byte, isNull bool) error {
	return w.core.WriteBinaryString(b, isNull)
}
func (w *CopyWriter) WriteVarBinary(fn func(Writer) error) error { return w.core.WriteVarBinary(fn) }
func (w *CopyWriter) ReserveBytes(n int) (int, error)            { return w.core.ReserveBytes(n) }
func (w *CopyWriter) WriteBytesAt(offset int, b []byte) error    { return w.core.WriteBytesAt(offset, b) }
func (w *CopyWriter) Bytes() []byte                              { return w.core.Bytes() }
func (w *CopyWriter) Len() int                                   { return w.core.Len() }

// BufferMovedFunc is invoked by a FallbackWriter the one time it
// reallocates its backing buffer, so the external runtime holding the old
// address can update its bookkeeping (spec.md §4.1).
type BufferMovedFunc func(newBuf []byte)

// FallbackWriter starts as a reference writer over a caller-supplied
// buffer. On its first overflow it reallocates, once, to a ~50MiB buffer
// and calls onMoved; a second overflow fails with
// corerr.KindOutputBufferOverflow.
type FallbackWriter struct {
	core       writerCore
	cap        int
	onMoved    BufferMovedFunc
	reallocked bool
}

// NewFallbackWriter wraps buf, falling back to a single ~50MiB
// reallocation (calling onMoved once) on overflow.
func NewFallbackWriter(buf []byte, onMoved BufferMovedFunc) *FallbackWriter {
	w := &FallbackWriter{cap: cap(buf), onMoved: onMoved}
	w.core = writerCore{buf: buf[:0], order: binary.BigEndian, ensureRoom: fallbackEnsureRoom}
	w.core.facade = w
	return w
}

func fallbackEnsureRoom(w *writerCore, n int) error {
	fw := w.facade.(*FallbackWriter)
	if len(w.buf)+n <= fw.cap {
		return nil
	}
	if fw.reallocked {
		return corerr.New(corerr.KindOutputBufferOverflow,
			"fallback writer already reallocated once; out of space: need %d more bytes, have %d/%d",
			n, len(w.buf), fw.cap)
	}
	newCap := fallbackReallocSize
	needed := len(w.buf) + n
	if needed > newCap {
		newCap = needed
	}
	grown := make([]byte, len(w.buf), newCap)
	copy(grown, w.buf)
	w.buf = grown
	fw.cap = newCap
	fw.reallocked = true
	if fw.onMoved != nil {
		fw.onMoved(w.buf)
	}
	return nil
}

func (w *FallbackWriter) WriteByte(b byte) error                  { return w.core.WriteByte(b) }
func (w *FallbackWriter) WriteBool(b bool) error                  { return w.core.WriteBool(b) }
func (w *FallbackWriter) WriteShort(v int16) error                { return w.core.WriteShort(v) }
func (w *FallbackWriter) WriteInt(v int32) error                  { return w.core.WriteInt(v) }
func (w *FallbackWriter) WriteLong(v int64) error                 { return w.core.WriteLong(v) }
func (w *FallbackWriter) WriteFloat(v float32) error              { return w.core.WriteFloat(v) }
func (w *FallbackWriter) WriteDouble(v float64) error             { return w.core.WriteDouble(v) }
func (w *FallbackWriter) WriteVarInt(v int64) error               { return w.core.WriteVarInt(v) }
func (w *FallbackWriter) WriteRawBytes(b []byte) error            { return w.core.WriteRawBytes(b) }
func (w *FallbackWriter) WriteTextString(s string, isNull bool) error {
	return w.core.WriteTextString(s, isNull)
}
func (w *FallbackWriter) WriteBinaryString(b []byte, isNull bool) error {
	return w.core.WriteBinaryString(b, isNull)
}
func (w *FallbackWriter) WriteVarBinary(fn func(Writer) error) error {
	return w.core.WriteVarBinary(fn)
}
func (w *FallbackWriter) ReserveBytes(n int) (int, error)         { return w.core.ReserveBytes(n) }
func (w *FallbackWriter) WriteBytesAt(offset int, b []byte) error { return w.core.WriteBytesAt(offset, b) }
func (w *FallbackWriter) Bytes() []byte                           { return w.core.Bytes() }
func (w *FallbackWriter) Len() int                                { return w.core.Len() }

var (
	_ Writer = (*ReferenceWriter)(nil)
	_ Writer = (*CopyWriter)(nil)
	_ Writer = (*FallbackWriter)(nil)
)
