// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package coord implements the replicated-table coordination wrapper
// described in spec §5: one engine (the "lowest site") performs a DML
// operation on a replicated table and publishes the modified-tuple count
// to a shared slot; peer engines consume the slot instead of re-executing
// the work. If the lowest site's work fails, the slot carries a failure
// sentinel that every peer surfaces as the same error.
package coord

import (
	"sync"

	"github.com/partitiondb/core/internal/corerr"
	"golang.org/x/sync/singleflight"
)

// FailureSentinel is published in place of a modified-tuple count when the
// lowest site's execution of a replicated DML operation fails.
const FailureSentinel = -1

// Slot is the shared, per-DML-operation publication point a Group
// coordinates through. It is safe for concurrent use by every engine
// participating in the replicated table's operation.
type Slot struct {
	mu       sync.Mutex
	has      bool
	modified int
}

func (s *Slot) publish(modified int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.has = true
	s.modified = modified
}

func (s *Slot) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.has = false
	s.modified = 0
}

// Group coordinates one replicated table's DML operations across the
// engines sharing it. There is one Group per replicated table per process;
// engines on other threads hold a reference to the same Group.
//
// Group collapses concurrent calls for the same operation key via
// singleflight, which gives the same "exactly one real execution, every
// caller observes its result" semantics the original's static
// modified-tuple-count propagation relied on, without a package-level
// global.
type Group struct {
	flight singleflight.Group
	slot   Slot
}

// NewGroup constructs a coordination Group for one replicated table.
func NewGroup() *Group {
	return &Group{}
}

// Execute runs body exactly once per opKey across every concurrent caller
// (the "lowest site" semantics collapse naturally: whichever goroutine's
// call starts first does the work, the rest observe its outcome).
// amLowest indicates whether this call is allowed to perform the body at
// all in a multi-engine deployment that assigns the honor explicitly; when
// false, Execute still participates in the singleflight collapse but
// should only be invoked by callers that expect the designated lowest site
// to already be racing to produce a result (peer engines polling the
// slot). modifiedRows is the count body reports on success; on failure the
// slot is set to FailureSentinel and every waiter receives the same error.
func (g *Group) Execute(opKey string, isReplicated, amLowest bool, body func() (modifiedRows int, err error)) (int, error) {
	if !isReplicated {
		return body()
	}

	if !amLowest {
		// Peers consume the slot the lowest site is about to (or has
		// already) published to. We still ride the singleflight call so a
		// peer that races ahead of the lowest site's publish blocks until
		// the real execution completes, rather than observing a stale
		// slot.
	}

	v, err, _ := g.flight.Do(opKey, func() (interface{}, error) {
		modified, bodyErr := body()
		if bodyErr != nil {
			g.slot.publish(FailureSentinel)
			return FailureSentinel, bodyErr
		}
		g.slot.publish(modified)
		return modified, nil
	})

	modified, _ := v.(int)
	if err != nil {
		return FailureSentinel, corerr.Wrap(corerr.KindReplicatedTableFailure, err,
			"lowest site reported failure executing replicated table operation")
	}
	if modified == FailureSentinel {
		return FailureSentinel, ErrReplicatedTableFailure
	}
	return modified, nil
}

// Observe returns the last published modified-row count for this group,
// without running or waiting on a new execution. Peers use this after
// Execute returns to confirm they saw a consistent value.
func (g *Group) Observe() (modifiedRows int, ok bool) {
	g.slot.mu.Lock()
	defer g.slot.mu.Unlock()
	return g.slot.modified, g.slot.has
}

// Reset clears the published slot, e.g. between independent DML
// operations sharing the same Group.
func (g *Group) Reset() {
	g.slot.reset()
}
