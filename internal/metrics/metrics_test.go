// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIndexCountersIncrement(t *testing.T) {
	r := NewRegistry("orders")
	r.IndexInserts.WithLabelValues("orders_pk").Inc()
	r.IndexInserts.WithLabelValues("orders_pk").Inc()
	r.IndexDeletes.WithLabelValues("orders_pk").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(r.IndexInserts.WithLabelValues("orders_pk")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.IndexDeletes.WithLabelValues("orders_pk")))
}

func TestCompactionPercentiles(t *testing.T) {
	r := NewRegistry("orders")
	for _, d := range []int64{100, 200, 300, 400, 500} {
		r.RecordCompactionMicros(d)
	}
	require.Equal(t, float64(5), testutil.ToFloat64(r.CompactionRuns))
	require.GreaterOrEqual(t, r.CompactionPercentile(50), int64(200))
}
