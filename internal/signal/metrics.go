package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики signaling-сервера.
type Metrics struct {
	Connections prometheus.Gauge
	Topics      prometheus.Gauge
	Messages    *prometheus.CounterVec
	Deliveries  prometheus.Counter
	Dropped     prometheus.Counter
	Panics      prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// nil reg означает отдельный реестр (метрики не экспортируются).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mathroom_signal_connections",
			Help: "Current number of websocket connections",
		}),
		Topics: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mathroom_signal_topics",
			Help: "Current number of topics with at least one subscriber",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mathroom_signal_messages_total",
			Help: "Messages received from clients by type",
		}, []string{"type"}),
		Deliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "mathroom_signal_deliveries_total",
			Help: "Published messages delivered to subscribers",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mathroom_signal_dropped_total",
			Help: "Messages dropped because a client send buffer was full",
		}),
		Panics: factory.NewCounter(prometheus.CounterOpts{
			Name: "mathroom_signal_panics_total",
			Help: "Panics recovered in HTTP handlers",
		}),
	}
}
