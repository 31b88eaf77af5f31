// Package metrics provides Prometheus metrics for the local gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "localgw"
	subsystem = "gateway"
)

// Metrics holds the gateway's Prometheus collectors. Instances register
// against an explicit registerer, so tests can use isolated registries.
type Metrics struct {
	RequestsTotal             *prometheus.CounterVec
	RequestDurationSeconds    *prometheus.HistogramVec
	InvocationsTotal          *prometheus.CounterVec
	InvocationDurationSeconds *prometheus.HistogramVec
	RouteTableSize            prometheus.Gauge
	TableRebuildsTotal        *prometheus.CounterVec
}

// New creates and registers the gateway metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests handled, by method and status code.",
			},
			[]string{"method", "status"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request handling duration.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invocations_total",
				Help:      "Total function invocations, by function and result.",
			},
			[]string{"function", "result"},
		),
		InvocationDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invocation_duration_seconds",
				Help:      "Function invocation duration as observed by the gateway.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"function"},
		),
		RouteTableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_table_size",
				Help:      "Number of routes in the installed route table.",
			},
		),
		TableRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "table_rebuilds_total",
				Help:      "Route table rebuilds, by result.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal,
			m.RequestDurationSeconds,
			m.InvocationsTotal,
			m.InvocationDurationSeconds,
			m.RouteTableSize,
			m.TableRebuildsTotal,
		)
	}
	return m
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveInvocation records one function invocation.
func (m *Metrics) ObserveInvocation(function, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(function, result).Inc()
	m.InvocationDurationSeconds.WithLabelValues(function).Observe(duration.Seconds())
}

// ObserveRebuild records one route table rebuild attempt.
func (m *Metrics) ObserveRebuild(result string, tableSize int) {
	if m == nil {
		return
	}
	m.TableRebuildsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		m.RouteTableSize.Set(float64(tableSize))
	}
}
