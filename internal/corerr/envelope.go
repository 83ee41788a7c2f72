// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package corerr

import (
	"encoding/binary"
)

// Envelope is the on-wire shape written to the shared exception buffer on
// failure: a 4-byte length, a 1-byte kind code, then a kind-specific
// payload. The payload is always at least the UTF-8 message string; a
// KindUniqueConstraint envelope additionally carries the conflicting
// tuple's table-wire-format bytes.
type Envelope struct {
	Kind       Kind
	Message    string
	ConflictTableBytes []byte
}

// EnvelopeOf converts a *CoreError into its wire envelope.
func EnvelopeOf(err *CoreError) Envelope {
	return Envelope{
		Kind:               err.Kind(),
		Message:            err.Error(),
		ConflictTableBytes: err.ConflictingTuple(),
	}
}

// Encode serializes the envelope as: 4-byte total length (exclusive of
// itself), 1-byte kind, 4-byte message length + message bytes, and, only
// for KindUniqueConstraint, a 4-byte length + the conflicting tuple bytes.
func (e Envelope) Encode() []byte {
	msg := []byte(e.Message)
	size := 1 + 4 + len(msg)
	hasConflict := e.Kind == KindUniqueConstraint
	if hasConflict {
		size += 4 + len(e.ConflictTableBytes)
	}

	buf := make([]byte, 4+size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	buf[4] = byte(e.Kind)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(msg)))
	n := copy(buf[9:], msg)
	off := 9 + n
	if hasConflict {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(e.ConflictTableBytes)))
		off += 4
		copy(buf[off:], e.ConflictTableBytes)
	}
	return buf
}

// DecodeEnvelope parses the wire form produced by Encode. Every decode
// failure is a KindInvalidMessage *CoreError.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < 4 {
		return Envelope{}, New(KindInvalidMessage, "corerr: envelope truncated before length prefix")
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint32(len(buf)) < size {
		return Envelope{}, New(KindInvalidMessage, "corerr: envelope declares %d bytes but only %d available", size, len(buf))
	}
	if len(buf) < 1 {
		return Envelope{}, New(KindInvalidMessage, "corerr: envelope missing kind byte")
	}
	kind := Kind(buf[0])
	buf = buf[1:]

	if len(buf) < 4 {
		return Envelope{}, New(KindInvalidMessage, "corerr: envelope truncated before message length")
	}
	msgLen := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint32(len(buf)) < msgLen {
		return Envelope{}, New(KindInvalidMessage, "corerr: envelope message truncated")
	}
	msg := string(buf[:msgLen])
	buf = buf[msgLen:]

	env := Envelope{Kind: kind, Message: msg}
	if kind == KindUniqueConstraint {
		if len(buf) < 4 {
			return Envelope{}, New(KindInvalidMessage, "corerr: envelope missing conflict length")
		}
		cLen := binary.BigEndian.Uint32(buf[0:4])
		buf = buf[4:]
		if uint32(len(buf)) < cLen {
			return Envelope{}, New(KindInvalidMessage, "corerr: envelope conflict bytes truncated")
		}
		env.ConflictTableBytes = append([]byte(nil), buf[:cLen]...)
	}
	return env, nil
}
