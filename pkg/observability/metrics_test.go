package observability_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/pkg/adapters/scripted"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	provider := scripted.New().
		Reply("on", "ON").
		Reply("nope", "ADMIN").
		Fail(errors.New("timeout"))

	m := moore.New("START",
		moore.WithName("light"),
		moore.WithProvider(provider),
		moore.WithLifecycleHooks(metrics.Hooks()),
	)
	m.MustRegister(
		domain.State{ID: "START", Prompt: "off", Transitions: map[string]string{"ON": "turn on"}},
		domain.State{ID: "ON", Prompt: "on", Transitions: map[string]string{"START": "turn off"}},
	)

	ctx := context.Background()
	_, err := m.Run(ctx, "turn on")
	require.NoError(t, err)
	_, err = m.Run(ctx, "admin")
	require.NoError(t, err)
	_, err = m.Run(ctx, "again")
	require.Error(t, err)

	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "moore_turn_duration_seconds")

	expected := `
# HELP moore_illegal_transitions_total Transitions requested by the model that the state does not declare
# TYPE moore_illegal_transitions_total counter
moore_illegal_transitions_total{machine="light",state="ON"} 1
# HELP moore_transitions_total Total number of state transitions
# TYPE moore_transitions_total counter
moore_transitions_total{from_state="START",machine="light",to_state="ON"} 1
# HELP moore_turns_total Total number of turns by state and outcome
# TYPE moore_turns_total counter
moore_turns_total{machine="light",outcome="provider_error",state="ON"} 1
moore_turns_total{machine="light",outcome="success",state="ON"} 1
moore_turns_total{machine="light",outcome="success",state="START"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"moore_turns_total", "moore_transitions_total", "moore_illegal_transitions_total")
	assert.NoError(t, err)
}

func TestMetrics_IllegalTransitionsKeepBoundedSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	provider := scripted.New()
	for i := range 50 {
		provider.Reply("no", fmt.Sprintf("HALLUCINATED_%d", i))
	}
	m := moore.New("START",
		moore.WithName("light"),
		moore.WithProvider(provider),
		moore.WithLifecycleHooks(metrics.Hooks()),
	)
	m.MustRegister(domain.State{ID: "START", Prompt: "off"})

	for range 50 {
		_, err := m.Run(context.Background(), "hi")
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "moore_illegal_transitions_total" {
			assert.Len(t, f.GetMetric(), 1)
		}
	}

	expected := `
# HELP moore_illegal_transitions_total Transitions requested by the model that the state does not declare
# TYPE moore_illegal_transitions_total counter
moore_illegal_transitions_total{machine="light",state="START"} 50
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "moore_illegal_transitions_total")
	assert.NoError(t, err)
}

func TestMetrics_RejectedTurnsAreCounted(t *testing.T) {
	tests := []struct {
		name    string
		states  []domain.State
		outcome string
		state   string
	}{
		{
			name: "completed machine",
			states: []domain.State{
				{ID: "START", Prompt: "off", Transitions: map[string]string{"DONE": "bye"}},
				{ID: "DONE", Prompt: "done"},
			},
			outcome: observability.OutcomeCompleted,
			state:   "DONE",
		},
		{
			name: "invalid declarations",
			states: []domain.State{
				{ID: "START", Prompt: "off", Transitions: map[string]string{"GHOST": "never"}},
				{ID: "DONE", Prompt: "done"},
			},
			outcome: observability.OutcomeError,
			state:   "START",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := observability.NewMetrics(reg)
			m := moore.New("START",
				moore.WithName("light"),
				moore.WithProvider(scripted.New().Reply("bye", "DONE")),
				moore.WithTerminalState("DONE"),
				moore.WithLifecycleHooks(metrics.Hooks()),
			)
			m.MustRegister(tt.states...)

			ctx := context.Background()
			if tt.outcome == observability.OutcomeCompleted {
				_, err := m.Run(ctx, "bye")
				require.NoError(t, err)
			}
			_, err := m.Run(ctx, "again")
			require.Error(t, err)

			expected := fmt.Sprintf(`
# HELP moore_turns_total Total number of turns by state and outcome
# TYPE moore_turns_total counter
moore_turns_total{machine="light",outcome=%q,state=%q} 1
`, tt.outcome, tt.state)
			if tt.outcome == observability.OutcomeCompleted {
				expected += `moore_turns_total{machine="light",outcome="success",state="START"} 1
`
			}
			err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "moore_turns_total")
			assert.NoError(t, err)
		})
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, observability.OutcomeSuccess},
		{&domain.ProviderError{StateID: "A", Err: errors.New("x")}, observability.OutcomeProvider},
		{&domain.HandlerError{StateID: "A", Err: errors.New("x")}, observability.OutcomeHandler},
		{&domain.MachineAlreadyCompletedError{StateID: "END"}, observability.OutcomeCompleted},
		{errors.New("other"), observability.OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, observability.Outcome(tt.err))
	}
}
