// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package hashinator

import "encoding/binary"

// Encode serializes the ring back to spec.md §6's wire format, the
// inverse of Decode. Used by a control plane publishing a new ring, and
// by tests round-tripping a constructed ring.
func (r *Ring) Encode() []byte {
	buf := make([]byte, 4+len(r.entries)*8)
	binary.BigEndian.PutUint32(buf, uint32(len(r.entries)))
	off := 4
	for _, e := range r.entries {
		binary.BigEndian.PutUint32(buf[off:], uint32(e.token))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(e.partition))
		off += 8
	}
	return buf
}
