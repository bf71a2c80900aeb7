package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// connMetrics holds Prometheus metrics for the realtime connection.
type connMetrics struct {
	framesReceived prometheus.Counter
	framesDropped  *prometheus.CounterVec
	reconnects     prometheus.Counter
	connectionUp   prometheus.Gauge
	subscriptions  prometheus.Gauge
}

var (
	connMetricsOnce   sync.Once
	globalConnMetrics *connMetrics
)

// getConnMetrics initializes connection metrics if they haven't been, and
// returns them. This ensures metrics are registered only once.
func getConnMetrics() *connMetrics {
	connMetricsOnce.Do(func() {
		globalConnMetrics = &connMetrics{
			framesReceived: promauto.NewCounter(prometheus.CounterOpts{
				Name: "realtime_frames_received_total",
				Help: "Total number of realtime frames received",
			}),
			framesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "realtime_frames_dropped_total",
				Help: "Total number of realtime frames dropped by reason",
			}, []string{"reason"}),
			reconnects: promauto.NewCounter(prometheus.CounterOpts{
				Name: "realtime_reconnects_total",
				Help: "Total number of reconnect attempts",
			}),
			connectionUp: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "realtime_connection_up",
				Help: "1 when the realtime connection is established",
			}),
			subscriptions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "realtime_subscriptions_total",
				Help: "Number of active topic subscriptions",
			}),
		}
	})
	return globalConnMetrics
}
