package observability

import (
	"context"
	"errors"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moore"

// Turn outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeProvider  = "provider_error"
	OutcomeHandler   = "handler_error"
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
)

// Metrics holds the Prometheus collectors fed by the machine hooks.
type Metrics struct {
	turnsTotal       *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	illegalTotal     *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	providerDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by state and outcome",
		}, []string{"machine", "state", "outcome"}),

		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of state transitions",
		}, []string{"machine", "from_state", "to_state"}),

		illegalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "illegal_transitions_total",
			Help:      "Transitions requested by the model that the state does not declare",
		}, []string{"machine", "state"}),

		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end duration of a turn",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"machine", "outcome"}),

		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of the model provider call of a turn",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"machine", "state"}),
	}
}

// Hooks returns lifecycle hooks that record every turn.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			outcome := Outcome(e.Err)
			m.turnsTotal.WithLabelValues(e.Machine, e.StateID, outcome).Inc()
			m.turnDuration.WithLabelValues(e.Machine, outcome).Observe(e.Duration.Seconds())
			if e.ProviderDuration > 0 {
				m.providerDuration.WithLabelValues(e.Machine, e.StateID).Observe(e.ProviderDuration.Seconds())
			}
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitionsTotal.WithLabelValues(e.Machine, e.From, e.To).Inc()
		},
		OnIllegalTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.illegalTotal.WithLabelValues(e.Machine, e.From).Inc()
		},
	}
}

// Outcome classifies a turn error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrProvider):
		return OutcomeProvider
	case errors.Is(err, domain.ErrHandler):
		return OutcomeHandler
	case errors.Is(err, domain.ErrMachineCompleted):
		return OutcomeCompleted
	default:
		return OutcomeError
	}
}
