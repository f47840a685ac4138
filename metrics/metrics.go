// Package metrics defines the Prometheus collectors for tool calls and upstream requests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for tool invocations and the upstream API.
type Metrics struct {
	toolCalls        *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripnow",
			Name:      "tool_calls_total",
			Help:      "Total MCP tool invocations by outcome",
		}, []string{"tool", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripnow",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests to the TripNow API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tripnow",
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.toolCalls, m.upstreamDuration, m.inFlight)
	return m
}

func (m *Metrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveUpstream records one upstream round trip. status is the HTTP status code
// or "error" for transport failures.
func (m *Metrics) ObserveUpstream(status string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(status).Observe(seconds)
}

func (m *Metrics) RequestStart() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) RequestFinish() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
