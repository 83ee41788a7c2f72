// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package corerr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestUniqueConstraintRoundTrip(t *testing.T) {
	conflict := []byte{1, 2, 3, 4, 5}
	err := UniqueConstraint(conflict)
	require.Equal(t, KindUniqueConstraint, err.Kind())
	require.True(t, err.Kind().Recoverable())
	require.Equal(t, conflict, err.ConflictingTuple())

	// Mutating the caller's slice must not affect the stored copy.
	conflict[0] = 0xff
	require.Equal(t, byte(1), err.ConflictingTuple()[0])

	env := EnvelopeOf(err)
	buf := env.Encode()
	decoded, decErr := DecodeEnvelope(buf)
	require.NoError(t, decErr)
	require.Equal(t, KindUniqueConstraint, decoded.Kind)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, decoded.ConflictTableBytes)
}

func TestFatalNotRecoverable(t *testing.T) {
	err := Fatal("invariant violated: %s", "index count negative")
	require.False(t, err.Kind().Recoverable())
	require.Equal(t, "Fatal", err.Kind().String())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("short buffer")
	err := Wrap(KindInvalidMessage, cause, "decoding column %d", 3)
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesByKind(t *testing.T) {
	a := New(KindUnsupportedOperation, "move_to_key on hash index")
	require.ErrorIs(t, a, Sentinel(KindUnsupportedOperation))
	require.False(t, errors.Is(a, Sentinel(KindFatal)))
}

func TestEnvelopeRoundTripNoConflict(t *testing.T) {
	err := New(KindQueryTimedOut, "fragment exceeded deadline")
	env := EnvelopeOf(err)
	buf := env.Encode()
	decoded, decErr := DecodeEnvelope(buf)
	require.NoError(t, decErr)
	require.Equal(t, KindQueryTimedOut, decoded.Kind)
	require.Nil(t, decoded.ConflictTableBytes)
}

func TestDecodeEnvelopeTruncated(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0, 0, 0, 5})
	require.Error(t, err)
}
