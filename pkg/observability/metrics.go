package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Metrics holds the engine collectors.
type Metrics struct {
	stateVisits    *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	actionCalls    *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors in reg. Collectors already
// registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, &domain.NullReferenceError{Arg: "registerer"}
	}

	m := &Metrics{}
	var err error
	if m.stateVisits, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colloquy_state_visits_total",
			Help: "Total number of state entries",
		},
		[]string{"state"},
	)); err != nil {
		return nil, err
	}
	if m.fallbacks, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colloquy_fallbacks_total",
			Help: "Total number of turns in which no transition matched",
		},
		[]string{"state"},
	)); err != nil {
		return nil, err
	}
	if m.actionCalls, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colloquy_action_executions_total",
			Help: "Total number of action executions",
		},
		[]string{"action", "outcome"},
	)); err != nil {
		return nil, err
	}
	if m.actionDuration, err = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colloquy_action_duration_seconds",
			Help:    "Duration of action executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)); err != nil {
		return nil, err
	}
	return m, nil
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

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.stateVisits.WithLabelValues(e.State).Inc()
		},
		OnFallback: func(_ context.Context, e *domain.StateEvent) {
			m.fallbacks.WithLabelValues(e.State).Inc()
		},
		OnActionReturn: func(_ context.Context, e *domain.ActionEvent) {
			outcome := "success"
			if e.IsError {
				outcome = "error"
			}
			m.actionCalls.WithLabelValues(e.Action, outcome).Inc()
			m.actionDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
		},
	}
}
