// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics holds component-local instrumentation: counters and
// gauges a developer can scrape while exercising the engine in-process.
// This is distinct from the out-of-scope statistics-collector subsystem
// (spec §1), which aggregates SQL-level execution stats for the host; the
// counters here never leave the process and exist purely for debugging;
// the developer CLI (cmd/enginectl) does not read them.
package metrics

import (
	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the counters and gauges exposed by one engine instance.
// The zero value is not usable; construct with NewRegistry.
type Registry struct {
	reg *prometheus.Registry

	IndexInserts   *prometheus.CounterVec
	IndexDeletes   *prometheus.CounterVec
	IndexSize      *prometheus.GaugeVec
	CompactionRuns prometheus.Counter
	ViewRecomputes *prometheus.CounterVec

	// compactionDurations records compaction wall-clock duration (in
	// microseconds) so CompactionPercentile can report percentiles without
	// needing a TSDB; HdrHistogram keeps bounded memory regardless of sample count.
	compactionDurations *hdrhistogram.Histogram
}

// NewRegistry constructs a Registry and registers its collectors on a
// fresh prometheus.Registry (never the global default registry, so
// multiple engines in one test binary don't collide).
func NewRegistry(tableName string) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		IndexInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "index",
			Name:      "inserts_total",
			Help:      "Number of tuples inserted into an index.",
			ConstLabels: prometheus.Labels{
				"table": tableName,
			},
		}, []string{"index"}),
		IndexDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "index",
			Name:      "deletes_total",
			Help:      "Number of tuples deleted from an index.",
			ConstLabels: prometheus.Labels{
				"table": tableName,
			},
		}, []string{"index"}),
		IndexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "engine",
			Subsystem: "index",
			Name:      "entries",
			Help:      "Current entry count of an index.",
			ConstLabels: prometheus.Labels{
				"table": tableName,
			},
		}, []string{"index"}),
		CompactionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "table",
			Name:      "compactions_total",
			Help:      "Number of forced or threshold-triggered compactions run.",
			ConstLabels: prometheus.Labels{
				"table": tableName,
			},
		}),
		ViewRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Subsystem: "view",
			Name:      "minmax_recomputes_total",
			Help:      "Number of times a MIN/MAX aggregate required recomputation on delete.",
			ConstLabels: prometheus.Labels{
				"table": tableName,
			},
		}, []string{"strategy"}),
		compactionDurations: hdrhistogram.New(1, 10_000_000, 3),
	}
	r.reg.MustRegister(r.IndexInserts, r.IndexDeletes, r.IndexSize, r.CompactionRuns, r.ViewRecomputes)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// RecordCompactionMicros records one compaction's wall-clock duration.
func (r *Registry) RecordCompactionMicros(micros int64) {
	r.CompactionRuns.Inc()
	_ = r.compactionDurations.RecordValue(micros)
}

// CompactionPercentile returns the p-th percentile (0..100) compaction
// duration observed so far, in microseconds.
func (r *Registry) CompactionPercentile(p float64) int64 {
	return r.compactionDurations.ValueAtQuantile(p)
}
