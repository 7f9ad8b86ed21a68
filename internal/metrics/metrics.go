package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed counts source messages by outcome: staged, duplicate, unmatched.
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenseapp_ingest_messages_total",
			Help: "Source messages processed by ingestion, by outcome",
		},
		[]string{"outcome"},
	)

	// SyncRuns counts sync passes by result: ok, failed, busy.
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenseapp_sync_runs_total",
			Help: "Ingestion sync passes by result",
		},
		[]string{"result"},
	)

	// DateFallbacks counts extractions that used the processing date.
	DateFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenseapp_extract_date_fallbacks_total",
			Help: "Extractions whose date did not parse, by template",
		},
		[]string{"template"},
	)

	// CommandsProcessed counts chat turns by matched command.
	CommandsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expenseapp_dialog_commands_total",
			Help: "Chat turns by matched command",
		},
		[]string{"command"},
	)

	// DialogFailures counts turns that ended in the generic failure reply.
	DialogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expenseapp_dialog_failures_total",
			Help: "Chat turns answered with the generic failure reply",
		},
	)

	// SyncDuration observes sync pass duration.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expenseapp_sync_duration_seconds",
			Help:    "Duration of one user's sync pass",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30},
		},
	)
)
