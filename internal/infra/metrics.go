package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	streamConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradesync_stream_connects_total",
			Help: "Total number of transitions into the Connected state",
		},
	)

	streamState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradesync_stream_state",
			Help: "Current stream state (0=disconnected 1=connecting 2=connected 3=reconnecting)",
		},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_messages_total",
			Help: "Inbound stream messages merged, by type",
		},
		[]string{"type"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_messages_dropped_total",
			Help: "Inbound messages dropped without merging, by reason",
		},
		[]string{"reason"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesync_orders_total",
			Help: "Order submissions by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(streamConnects)
	prometheus.MustRegister(streamState)
	prometheus.MustRegister(messagesTotal)
	prometheus.MustRegister(droppedTotal)
	prometheus.MustRegister(ordersTotal)
}

// MetricsHandler returns the Prometheus scrape endpoint handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordStreamConnected counts a transition into Connected.
func RecordStreamConnected() {
	streamConnects.Inc()
}

// SetStreamState exports the connection state as a gauge.
func SetStreamState(state int) {
	streamState.Set(float64(state))
}

// RecordMessage counts a merged inbound message.
func RecordMessage(msgType string) {
	messagesTotal.WithLabelValues(msgType).Inc()
}

// RecordDropped counts a dropped inbound message.
func RecordDropped(reason string) {
	droppedTotal.WithLabelValues(reason).Inc()
}

// RecordOrder counts an order submission outcome.
func RecordOrder(outcome string) {
	ordersTotal.WithLabelValues(outcome).Inc()
}
