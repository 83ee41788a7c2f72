// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package coord

import "github.com/partitiondb/core/internal/corerr"

// ErrReplicatedTableFailure is surfaced to every peer engine that observes
// the FailureSentinel published by the lowest site, per spec §7.
var ErrReplicatedTableFailure = corerr.New(corerr.KindReplicatedTableFailure,
	"lowest site reported failure executing replicated table operation")
