// Package metrics exposes Prometheus instrumentation for the service.
// Counters are incremented at the transport layer so the core stays free of
// observability concerns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlayEventsIngested counts submit outcomes.
	// outcome: created | replayed | conflict | rejected | error
	PlayEventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "play_events_ingested_total",
			Help: "Total number of play event submissions by outcome",
		},
		[]string{"outcome"},
	)

	// HistoryQueries counts history page reads.
	HistoryQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "play_history_queries_total",
			Help: "Total number of play history page queries",
		},
	)

	// MostWatchedQueries counts most-watched aggregation reads.
	MostWatchedQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "most_watched_queries_total",
			Help: "Total number of most-watched aggregation queries",
		},
	)

	// RecordsAnonymized counts rows rewritten to the anonymization placeholder.
	RecordsAnonymized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "play_events_anonymized_total",
			Help: "Total number of play event records anonymized",
		},
	)
)
