// Package metrics holds the Prometheus collectors exported by the service.
//
// A nil *Metrics is valid and records nothing, so tests and tools can skip wiring it.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

const namespace = "ticket_api"

type Metrics struct {
	operations   *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	replays      prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ticket operations by outcome code.",
		}, []string{"operation", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_store_duration_seconds",
			Help:      "Record store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call", "result"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Scan responses served from the idempotency store.",
		}),
	}
	reg.MustRegister(m.operations, m.storeLatency, m.replays)
	return m
}

// Operation counts one finished operation. outcome is "OK" or an error code.
func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// StoreCall observes one Load or Save.
func (m *Metrics) StoreCall(call string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(call, storeResult(err)).Observe(d.Seconds())
}

// Replay counts a response served from the idempotency store.
func (m *Metrics) Replay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, recordstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, recordstore.ErrUnreadable):
		return "unreadable"
	case errors.Is(err, recordstore.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, recordstore.ErrUnwritable):
		return "unwritable"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
