// Package metrics exposes Prometheus collectors for partner calls and the
// sandbox server.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

const namespace = "pokepay"

// Outcome labels for CallsTotal besides the error kinds
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
)

// Metrics holds every collector. Register it once per registry.
type Metrics struct {
	// Client side
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec

	// Sandbox side
	SandboxRequestsTotal *prometheus.CounterVec
	SandboxRejected      *prometheus.CounterVec
	SandboxReplays       prometheus.Counter
	EventSubscribers     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "calls_total",
				Help:      "Total number of partner calls by operation and outcome",
			},
			[]string{"operation", "method", "outcome"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "call_duration_seconds",
				Help:      "Duration of partner calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SandboxRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sandbox",
				Name:      "requests_total",
				Help:      "Total number of envelope requests served by the sandbox",
			},
			[]string{"method", "status"},
		),
		SandboxRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sandbox",
				Name:      "rejected_total",
				Help:      "Envelope requests rejected before dispatch, by reason",
			},
			[]string{"reason"},
		),
		SandboxReplays: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sandbox",
				Name:      "replayed_call_ids_total",
				Help:      "Requests refused because their partner_call_id was already used",
			},
		),
		EventSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sandbox",
				Name:      "event_subscribers",
				Help:      "Connected event stream subscribers",
			},
		),
	}
}

// ObserveCall records one partner call
func (m *Metrics) ObserveCall(rec pokepay.CallRecord) {
	m.CallsTotal.WithLabelValues(rec.Operation, string(rec.Method), Outcome(rec)).Inc()
	m.CallDuration.WithLabelValues(rec.Operation).Observe(rec.Elapsed.Seconds())
}

// ObserveSandboxRequest records one request served by the sandbox
func (m *Metrics) ObserveSandboxRequest(method string, status int) {
	m.SandboxRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Outcome returns the outcome label for rec
func Outcome(rec pokepay.CallRecord) string {
	switch {
	case rec.Err != nil:
		return pokepay.ErrorKind(rec.Err)
	case !rec.OK:
		return OutcomeHTTPError
	default:
		return OutcomeOK
	}
}
