package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	committed *prometheus.CounterVec
	indexed   *prometheus.CounterVec
	dropped   prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "events",
				Name:      "committed_total",
				Help:      "Count of committed events segmented by event type.",
			}, []string{"type"}),
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "events",
				Name:      "indexed_total",
				Help:      "Count of events written to the SQL index segmented by event type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "events",
				Name:      "stream_dropped_total",
				Help:      "Websocket stream messages dropped for slow consumers.",
			}),
		}
		prometheus.MustRegister(eventRegistry.committed, eventRegistry.indexed, eventRegistry.dropped)
	})
	return eventRegistry
}

func eventLabel(eventType string) string {
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// RecordCommitted increments the committed counter for the event type.
func (m *eventMetrics) RecordCommitted(eventType string) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(eventLabel(eventType)).Inc()
}

// RecordIndexed increments the indexed counter for the event type.
func (m *eventMetrics) RecordIndexed(eventType string) {
	if m == nil {
		return
	}
	m.indexed.WithLabelValues(eventLabel(eventType)).Inc()
}

// RecordStreamDrop counts a message not delivered to a websocket client.
func (m *eventMetrics) RecordStreamDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// IndexedCounter exposes the indexed counter for an event type.
func (m *eventMetrics) IndexedCounter(eventType string) prometheus.Counter {
	return m.indexed.WithLabelValues(eventLabel(eventType))
}
