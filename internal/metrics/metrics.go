package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MatchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "match_created_total", Help: "Total matches created"},
	)
	MatchesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "match_closed_total", Help: "Total matches moved out of LIVE"},
		[]string{"status"},
	)
	EventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "match_events_appended_total", Help: "Total committed match events"},
		[]string{"event_type"},
	)
	VersionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "match_version_conflicts_total", Help: "Total state updates rejected for a stale version"},
	)

	ProcessedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sync_processed_total", Help: "Total processed outbox events"},
	)
	FailedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sync_failed_total", Help: "Total failed outbox events"},
	)
	DLQEvents = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sync_dlq_total", Help: "Total events inserted into DLQ"},
	)
)

func Register() {
	prometheus.MustRegister(
		MatchesCreated, MatchesClosed, EventsAppended, VersionConflicts,
		ProcessedEvents, FailedEvents, DLQEvents,
	)
}
