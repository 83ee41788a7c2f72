// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package serialize implements the endian-aware byte codec that frames
// every wire exchange in this module: tuples, tables, and the partition
// router's configuration blob all ride on top of Reader/Writer. See
// spec.md §4.1.
package serialize

import (
	"encoding/binary"
	"math"

	"github.com/partitiondb/core/internal/corerr"
)

// Reader decodes values from a borrowed, contiguous byte buffer. All reads
// bounds-check against the buffer's (possibly limited) end and fail with a
// corerr.KindInvalidMessage error on underflow, never a panic.
type Reader struct {
	buf   []byte
	pos   int
	limit int // exclusive upper bound on pos, <= len(buf)
	order binary.ByteOrder
}

// NewReader wraps buf for big-endian decoding, the wire format used by
// every external interface in spec.md §6.
func NewReader(buf []byte) *Reader {
	return NewReaderOrder(buf, binary.BigEndian)
}

// NewReaderLE wraps buf for little-endian decoding, used on memory-copied
// paths that never cross the wire (spec.md §4.1).
func NewReaderLE(buf []byte) *Reader {
	return NewReaderOrder(buf, binary.LittleEndian)
}

// NewReaderOrder wraps buf for decoding in an explicit byte order.
func NewReaderOrder(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, limit: len(buf), order: order}
}

// Remaining reports how many unread bytes are available.
func (r *Reader) Remaining() int { return r.limit - r.pos }

// Position reports the current read offset.
func (r *Reader) Position() int { return r.pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > r.limit {
		return corerr.New(corerr.KindInvalidMessage,
			"read past end of buffer: need %d bytes, have %d", n, r.limit-r.pos)
	}
	return nil
}

// ReadByte reads one byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBool reads a one-byte boolean (nonzero is true).
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadShort reads a two-byte signed integer.
func (r *Reader) ReadShort() (int16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := int16(r.order.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v, nil
}

// ReadInt reads a four-byte signed integer.
func (r *Reader) ReadInt() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(r.order.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

// ReadLong reads an eight-byte signed integer.
func (r *Reader) ReadLong() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(r.order.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

// ReadFloat reads a four-byte IEEE-754 float.
func (r *Reader) ReadFloat() (float32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(r.order.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

// ReadDouble reads an eight-byte IEEE-754 double.
func (r *Reader) ReadDouble() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(r.order.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

// ReadVarInt reads a zig-zag, variable-length-encoded signed integer.
func (r *Reader) ReadVarInt() (int64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, corerr.New(corerr.KindInvalidMessage, "var_int too long")
		}
	}
	return zigzagDecode(result), nil
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ReadBytes reads exactly n raw bytes. The returned slice aliases the
// reader's backing buffer; copy it if it must outlive further reads on a
// Copy/Fallback writer path that might move memory.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadTextString reads a 4-byte length prefix followed by that many bytes,
// interpreted as UTF-8 text. Length -1 denotes a null string, returned as
// ("", true, nil).
func (r *Reader) ReadTextString() (s string, isNull bool, err error) {
	b, isNull, err := r.readLengthPrefixed()
	if err != nil || isNull {
		return "", isNull, err
	}
	return string(b), false, nil
}

// ReadBinaryString reads a 4-byte length prefix followed by that many raw
// bytes. Length -1 denotes null, returned as (nil, true, nil).
func (r *Reader) ReadBinaryString() (b []byte, isNull bool, err error) {
	return r.readLengthPrefixed()
}

func (r *Reader) readLengthPrefixed() ([]byte, bool, error) {
	length, err := r.ReadInt()
	if err != nil {
		return nil, false, err
	}
	if length == -1 {
		return nil, true, nil
	}
	if length < 0 {
		return nil, false, corerr.New(corerr.KindInvalidMessage, "negative string length %d", length)
	}
	b, err := r.ReadBytes(int(length))
	return b, false, err
}

// Limit shrinks the reader's end by n bytes (i.e. the readable region
// becomes [pos, len(buf)-n)). Used to carve a bounded sub-message out of a
// larger buffer.
func (r *Reader) Limit(n int) error {
	newLimit := r.limit - n
	if newLimit < r.pos {
		return corerr.New(corerr.KindInvalidMessage, "limit(%d) would leave negative remaining bytes", n)
	}
	r.limit = newLimit
	return nil
}

// Unread rewinds the read position by n bytes.
func (r *Reader) Unread(n int) error {
	if r.pos-n < 0 {
		return corerr.New(corerr.KindInvalidMessage, "unread(%d) would rewind before start of buffer", n)
	}
	r.pos -= n
	return nil
}
