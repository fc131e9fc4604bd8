// Package metrics exposes Prometheus counters for the polling pipeline.
//
// Labels are bounded: "source" is a configured source name, "kind" and
// "decision" are small fixed sets, "sink" is one of the notifier sinks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Cycles counts completed poll cycles per source.
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resywatch_cycles_total",
			Help: "Total number of poll cycles.",
		},
		[]string{"source"},
	)

	// FetchErrors counts failed fetches by error kind (transient|provider|other).
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resywatch_fetch_errors_total",
			Help: "Total number of failed provider fetches.",
		},
		[]string{"source", "kind"},
	)

	Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resywatch_candidates_total",
			Help: "Total number of reservation candidates returned by adapters.",
		},
		[]string{"source"},
	)

	// Decisions counts pipeline outcomes per candidate (skip|accept|suppress|invalid).
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resywatch_decisions_total",
			Help: "Total number of candidate decisions.",
		},
		[]string{"source", "decision"},
	)

	// Deliveries counts notifier sink results (ok|error|dropped). The mail
	// sink queues on ok and reports the later SMTP outcome as sent|send_error.
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resywatch_deliveries_total",
			Help: "Total number of notification deliveries by sink and result.",
		},
		[]string{"sink", "result"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resywatch_fetch_duration_seconds",
			Help:    "Duration of adapter fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(Cycles, FetchErrors, Candidates, Decisions, Deliveries, FetchDuration)
}
