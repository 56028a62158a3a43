// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts degraded outcomes and reconciliation work. Degraded writes
// are never surfaced as errors, so these counters are the signal operators
// alert on.
type Metrics struct {
	IndexWriteFailures   *prometheus.CounterVec
	HistoryWriteFailures prometheus.Counter
	StaleCandidates      prometheus.Counter
	SearchDuration       prometheus.Histogram
	ReconcileActions     *prometheus.CounterVec
}

// NewMetrics creates the catalog collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use for isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IndexWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolsearch",
			Name:      "index_write_failures_total",
			Help:      "Vector index writes that failed after the record store committed.",
		}, []string{"op", "stage"}),
		HistoryWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toolsearch",
			Name:      "history_write_failures_total",
			Help:      "Search history appends that failed after results were computed.",
		}),
		StaleCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toolsearch",
			Name:      "search_stale_candidates_total",
			Help:      "Index hits dropped because the tool no longer exists in the record store.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "toolsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end latency of semantic search.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolsearch",
			Name:      "reconcile_actions_total",
			Help:      "Repairs performed by the index reconciler.",
		}, []string{"action"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.IndexWriteFailures,
			m.HistoryWriteFailures,
			m.StaleCandidates,
			m.SearchDuration,
			m.ReconcileActions,
		)
	}
	return m
}
