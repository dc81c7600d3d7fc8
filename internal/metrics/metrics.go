package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mergedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_sync_merged_total",
		Help: "Rows appended to a local collection, by entity and source (write or push).",
	}, []string{"entity", "source"})

	duplicateRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_sync_duplicates_dropped_total",
		Help: "Pushed rows dropped because the collection already held the id.",
	}, []string{"entity"})

	syncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_sync_errors_total",
		Help: "Remote failures surfaced by sync hooks, by entity and kind.",
	}, []string{"entity", "kind"})

	openSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campus_sync_open_subscriptions",
		Help: "Change-feed subscriptions currently held by sync hooks.",
	}, []string{"entity"})

	droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_changes_dropped_total",
		Help: "Change events dropped because a subscriber was lagging.",
	}, []string{"table"})
)

// Sync records sync-hook behaviour. The zero value reports to the default
// registry; a nil *Sync is a no-op.
type Sync struct{}

func NewSync() *Sync { return &Sync{} }

func (m *Sync) Merged(entity, source string) {
	if m == nil {
		return
	}
	mergedRows.WithLabelValues(entity, source).Inc()
}

func (m *Sync) Duplicate(entity string) {
	if m == nil {
		return
	}
	duplicateRows.WithLabelValues(entity).Inc()
}

func (m *Sync) Error(entity, kind string) {
	if m == nil {
		return
	}
	syncErrors.WithLabelValues(entity, kind).Inc()
}

func (m *Sync) SubscriptionOpened(entity string) {
	if m == nil {
		return
	}
	openSubscriptions.WithLabelValues(entity).Inc()
}

func (m *Sync) SubscriptionClosed(entity string) {
	if m == nil {
		return
	}
	openSubscriptions.WithLabelValues(entity).Dec()
}

func EventDropped(table string) {
	droppedEvents.WithLabelValues(table).Inc()
}
