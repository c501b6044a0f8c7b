package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	TrackingHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engagement_tracking_hits_total", Help: "Tracking endpoint hits"},
		[]string{"kind", "result"},
	)
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engagement_events_recorded_total", Help: "Engagement events appended to the ledger"},
		[]string{"event_type"},
	)
	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engagement_sends_total", Help: "Per-recipient send outcomes"},
		[]string{"result"},
	)
	QueueMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engagement_queue_messages_total", Help: "Tracking queue publish/consume results"},
		[]string{"op", "result"},
	)
	RecomputeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "engagement_recompute_seconds", Help: "Analytics snapshot recompute latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(TrackingHits, EventsRecorded, Sends, QueueMessages, RecomputeLatency)
}
