package monitor

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// DefaultLowConfidence is the threshold below which a recognition counts as
// low-confidence.
const DefaultLowConfidence = 0.3

// Prometheus exports recognition metrics.
type Prometheus struct {
	recognitions  *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	lowConfidence *prometheus.CounterVec
	threshold     float64
	registerer    prometheus.Registerer
}

// NewPrometheus creates the collectors and registers them on reg. Collectors
// already registered by an earlier monitor are reused, so several pipelines
// can share one registry.
func NewPrometheus(reg prometheus.Registerer, lowConfidence float64) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Prometheus{
		recognitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colloquy_recognitions_total",
			Help: "Total number of recognition calls by intent and outcome.",
		}, []string{"intent", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "colloquy_recognition_duration_seconds",
			Help:    "Duration of recognition calls, processors included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		lowConfidence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colloquy_recognition_low_confidence_total",
			Help: "Recognitions whose confidence fell under the configured threshold.",
		}, []string{"intent"}),
		threshold:  lowConfidence,
		registerer: reg,
	}

	var err error
	if p.recognitions, err = register(reg, p.recognitions); err != nil {
		return nil, err
	}
	if p.latency, err = register(reg, p.latency); err != nil {
		return nil, err
	}
	if p.lowConfidence, err = register(reg, p.lowConfidence); err != nil {
		return nil, err
	}
	return p, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records rec.
func (p *Prometheus) Observe(_ context.Context, rec ports.RecognitionRecord) {
	outcome := "recognized"
	switch {
	case rec.Err != nil:
		outcome = "error"
	case rec.Event == domain.DefaultFallbackIntent.Name:
		outcome = "unmatched"
	}
	intent := rec.Event
	if intent == "" {
		intent = "unknown"
	}
	p.recognitions.WithLabelValues(intent, outcome).Inc()
	p.latency.WithLabelValues(outcome).Observe(rec.Latency.Seconds())
	if rec.Err == nil && rec.Confidence < p.threshold {
		p.lowConfidence.WithLabelValues(intent).Inc()
	}
}

// Close is a no-op; collectors stay registered.
func (p *Prometheus) Close() error { return nil }

var _ ports.Monitor = (*Prometheus)(nil)
