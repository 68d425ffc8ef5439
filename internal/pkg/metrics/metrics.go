package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	Created        prometheus.Counter
	Throttled      prometheus.Counter
	Sent           prometheus.Counter
	Failed         prometheus.Counter
	Retried        prometheus.Counter
	Cancelled      prometheus.Counter
	ChannelResults *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_created_total",
			Help: "Notifications persisted by the dispatch orchestrator.",
		}),
		Throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_throttled_total",
			Help: "Create requests rejected by the throttle guard.",
		}),
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_sent_total",
			Help: "Delivery attempts where at least one channel succeeded.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_failed_total",
			Help: "Delivery attempts where every channel failed.",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_retried_total",
			Help: "Failed notifications re-entered into pending by the retry sweep.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_notifications_cancelled_total",
			Help: "Notifications cancelled before delivery.",
		}),
		ChannelResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_channel_results_total",
			Help: "Per-channel delivery outcomes.",
		}, []string{"channel", "result"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_schedule_queue_depth",
			Help: "Entries waiting in the scheduling queue.",
		}),
	}

	reg.MustRegister(
		m.Created, m.Throttled, m.Sent, m.Failed, m.Retried, m.Cancelled,
		m.ChannelResults, m.QueueDepth,
	)

	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
