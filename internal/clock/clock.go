// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package clock supplies the cheap monotonic timestamp primitive used on
// the mutation hot path to check progress-callback deadline hints (spec
// §5, Cancellation). It is a thin wrapper over crlib/crtime so the rest of
// the engine never imports crtime directly.
package clock

import (
	"time"

	"github.com/cockroachdb/crlib/crtime"
)

// Mono is a monotonic timestamp suitable for measuring elapsed durations.
// It must never be compared across process restarts or serialized.
type Mono = crtime.Mono

// Now returns the current monotonic timestamp. On the mutation hot path
// this is preferred over time.Now() purely for its lower overhead; nothing
// in the engine depends on wall-clock semantics from it.
func Now() Mono {
	return crtime.NowMono()
}

// Deadline tracks a single operation's cooperative cancellation deadline,
// as consulted by the progress callback contract in spec §5.
type Deadline struct {
	start Mono
	limit time.Duration
}

// NewDeadline starts a deadline of the given duration, timed from now.
// A zero duration means "no deadline": Exceeded always reports false.
func NewDeadline(limit time.Duration) Deadline {
	return Deadline{start: Now(), limit: limit}
}

// Exceeded reports whether the deadline hint has been passed. Callers that
// observe true should surface corerr.KindQueryTimedOut and leave the undo
// log intact, per spec §5.
func (d Deadline) Exceeded() bool {
	if d.limit <= 0 {
		return false
	}
	return d.start.Elapsed() >= d.limit
}

// Elapsed reports how long has passed since the deadline started.
func (d Deadline) Elapsed() time.Duration {
	return d.start.Elapsed()
}
