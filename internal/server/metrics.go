package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leejongyoung/Cargotchi/internal/bitmap"
	"github.com/leejongyoung/Cargotchi/internal/form"
	"github.com/leejongyoung/Cargotchi/internal/wire"
)

// Outcome labels for cargotchi_connections_total.
const (
	outcomeSaved     = "saved"     // answered, update applied
	outcomeUnchanged = "unchanged" // answered, nothing applied
	outcomeDropped   = "dropped"   // closed without a response
)

// Metrics counts connection outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests    *prometheus.CounterVec
	connections *prometheus.CounterVec
	failures    *prometheus.CounterVec
	retained    prometheus.Gauge
}

// NewMetrics registers the server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cargotchi_requests_total",
			Help: "Parsed requests, by method.",
		}, []string{"method"}),
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cargotchi_connections_total",
			Help: "Handled connections, by outcome (saved, unchanged, dropped).",
		}, []string{"outcome"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cargotchi_failures_total",
			Help: "Request failures, by reason.",
		}, []string{"reason"}),
		retained: f.NewGauge(prometheus.GaugeOpts{
			Name: "cargotchi_retained_buffer_bytes",
			Help: "Capacity of the per-request buffers kept between connections.",
		}),
	}
}

func (m *Metrics) request(method wire.Method) {
	if m != nil {
		m.requests.WithLabelValues(method.String()).Inc()
	}
}

func (m *Metrics) connection(outcome string) {
	if m != nil {
		m.connections.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) failure(reason string) {
	if m != nil {
		m.failures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) setRetained(n int) {
	if m != nil {
		m.retained.Set(float64(n))
	}
}

// reason maps an error to its failure label.
func reason(err error) string {
	switch {
	case errors.Is(err, wire.ErrReadTimeout):
		return "read_timeout"
	case errors.Is(err, wire.ErrHeaderTooLarge):
		return "header_too_large"
	case errors.Is(err, wire.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, form.ErrMarkerNotFound):
		return "marker_not_found"
	case errors.Is(err, form.ErrDecodeUTF8):
		return "decode_utf8"
	case errors.Is(err, bitmap.ErrOddHexLength):
		return "odd_hex_length"
	case errors.Is(err, bitmap.ErrInvalidHexDigit):
		return "invalid_hex_digit"
	case errors.Is(err, bitmap.ErrBufferTooShort):
		return "buffer_too_short"
	case errors.Is(err, errDisplay):
		return "display"
	case errors.Is(err, errStore):
		return "store"
	default:
		return "io"
	}
}
