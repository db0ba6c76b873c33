// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes gateway activity to Prometheus
package metrics

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rxbridge"

// NewRegistry creates a registry with the Go and process collectors registered
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics counts poll loop events. It implements controller.Observer.
type Metrics struct {
	Frames         *prometheus.CounterVec // labels: kind
	DecodeErrors   *prometheus.CounterVec // labels: reason
	CommandsSent   *prometheus.CounterVec // labels: kind
	Rejected       prometheus.Counter
	DoubledSends   prometheus.Counter
	Inits          prometheus.Counter
	Released       prometheus.Counter
	ReplyLatency   prometheus.Histogram
	InvalidReports prometheus.Counter
}

var _ controller.Observer = (*Metrics)(nil)

// New registers and returns the gateway metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames decoded from the receiver by kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Incomplete or corrupt frames seen while decoding.",
		}, []string{"reason"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands transmitted to the receiver.",
		}, []string{"kind"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Commands dropped because their payload has no known shape.",
		}),
		DoubledSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_doubled_total",
			Help:      "Commands sent twice because the receiver was in powersave.",
		}),
		Inits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "init_sent_total",
			Help:      "Init sequences transmitted.",
		}),
		Released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listeners_released_total",
			Help:      "Listeners released without a matching report.",
		}),
		ReplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_seconds",
			Help:      "Time from queueing a correlated command to its report.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4},
		}),
		InvalidReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_invalid_total",
			Help:      "Reports whose terminator was not ETX.",
		}),
	}
	reg.MustRegister(m.Frames, m.DecodeErrors, m.CommandsSent, m.Rejected, m.DoubledSends,
		m.Inits, m.Released, m.ReplyLatency, m.InvalidReports)
	return m
}

// RegisterStatus exports session state gauges read from status on every scrape
func RegisterStatus(reg prometheus.Registerer, status func() controller.Status) {
	gauge := func(name, help string, fn func(controller.Status) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(status()) })
	}
	reg.MustRegister(
		gauge("ready", "1 once communication with the receiver is established.", func(s controller.Status) float64 {
			return boolFloat(s.Ready)
		}),
		gauge("powersave", "1 while the receiver is in powersave.", func(s controller.Status) float64 {
			return boolFloat(s.Powersave)
		}),
		gauge("listeners_pending", "Correlated commands waiting for a report.", func(s controller.Status) float64 {
			return float64(s.Pending)
		}),
		gauge("commands_queued", "Commands not yet transmitted.", func(s controller.Status) float64 {
			return float64(s.Queued)
		}),
		gauge("reports_stored", "Distinct report codes stored.", func(s controller.Status) float64 {
			return float64(s.Reports)
		}),
	)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) FrameDecoded(f rs232.Frame) {
	m.Frames.WithLabelValues(strings.ToLower(f.Kind().String())).Inc()
	if r, ok := f.(*rs232.Report); ok && !r.Valid {
		m.InvalidReports.Inc()
	}
}

func (m *Metrics) DecodeFailed(err error) {
	reason := "other"
	switch {
	case errors.Is(err, rs232.ErrInsufficientData):
		reason = "incomplete"
	case errors.Is(err, rs232.ErrMalformedTerminator):
		reason = "terminator"
	case errors.Is(err, rs232.ErrMalformedLength):
		reason = "length"
	}
	m.DecodeErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) InitSent() {
	m.Inits.Inc()
}

func (m *Metrics) CommandSent(cmd *controller.PendingCommand, copies int) {
	kind, err := rs232.ClassifyCommand(cmd.Payload)
	if err != nil {
		return
	}
	m.CommandsSent.WithLabelValues(kind.String()).Inc()
	if copies > 1 {
		m.DoubledSends.Inc()
	}
}

func (m *Metrics) CommandRejected(*controller.PendingCommand, error) {
	m.Rejected.Inc()
}

func (m *Metrics) ListenerMatched(cmd *controller.PendingCommand, _ *rs232.Report) {
	m.ReplyLatency.Observe(time.Since(cmd.Queued).Seconds())
}

func (m *Metrics) ListenersReleased(n int) {
	m.Released.Add(float64(n))
}
