package moore_test

import (
	"context"
	"testing"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/pkg/adapters/scripted"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_LightSwitch(t *testing.T) {
	p := scripted.New().
		Reply("The light is now on.", "STATE_ON").
		Reply("The light is now off.", "START").
		Reply("Hi! Want some light?", "")

	m := moore.New("START", moore.WithProvider(p), moore.WithName("light-switch"))
	m.MustRegister(
		domain.State{
			ID:          "START",
			Prompt:      "You are a light switch. The light is off.",
			Transitions: map[string]string{"STATE_ON": "If user says to turn on the light"},
		},
		domain.State{
			ID:          "STATE_ON",
			Prompt:      "You are a light switch. The light is on.",
			Transitions: map[string]string{"START": "If user says to turn off the light"},
		},
	)
	ctx := context.Background()

	steps := []struct {
		input        string
		state        string
		transitioned bool
	}{
		{"turn on the light", "STATE_ON", true},
		{"turn it off", "START", true},
		{"hello", "START", false},
	}
	for _, step := range steps {
		res, err := m.Run(ctx, step.input)
		require.NoError(t, err, step.input)
		assert.Equal(t, step.state, res.State, step.input)
		assert.Equal(t, step.transitioned, res.Transitioned, step.input)
		assert.Equal(t, step.state, m.CurrentState())
	}

	assert.Equal(t, "light-switch", m.Name())
	assert.Equal(t, moore.DefaultModel, p.Requests()[0].Model)
}

func TestMachine_Identification(t *testing.T) {
	type user struct {
		Content string `json:"content"`
		Name    string `json:"name"`
	}

	p := scripted.New().ReplyFields(map[string]any{"content": "Nice to meet you, Ann.", "name": "Ann"}, "IDENTIFIED")
	m := moore.New("START", moore.WithTerminalState("IDENTIFIED"), moore.WithProvider(p), moore.WithModel("test-model"))
	m.MustRegister(
		domain.State{
			ID:          "START",
			Prompt:      "Ask for the user's name.",
			Model:       user{},
			Transitions: map[string]string{"IDENTIFIED": "The user told you their name"},
			Handler: func(ctx context.Context, s domain.Session, turn domain.Turn) (any, error) {
				if turn.Decision.Transitioned {
					var u user
					if err := turn.Reply.Decode(&u); err != nil {
						return nil, err
					}
					s.SetContextData("verified_user", map[string]any{"name": u.Name})
				}
				return nil, nil
			},
		},
		domain.State{ID: "IDENTIFIED", Prompt: "Thank the user."},
	)

	assert.Equal(t, "START", m.Initial())
	assert.Equal(t, "IDENTIFIED", m.Terminal())
	assert.False(t, m.IsCompleted())

	res, err := m.Run(context.Background(), "I'm Ann")
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you, Ann.", res.Payload)
	assert.True(t, m.IsCompleted())

	v, ok := m.ContextData("verified_user")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "Ann"}, v)

	_, err = m.Run(context.Background(), "anything else?")
	assert.ErrorIs(t, err, domain.ErrMachineCompleted)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, "test-model", p.Requests()[0].Model)

	m.Reset()
	assert.False(t, m.IsCompleted())
	_, ok = m.ContextData("verified_user")
	assert.False(t, ok)
}

func TestMachine_Introspection(t *testing.T) {
	m := moore.New("A")
	require.NoError(t, m.Register(
		domain.State{ID: "B"},
		domain.State{ID: "A", Transitions: map[string]string{"B": "go"}},
	))

	states := m.States()
	require.Len(t, states, 2)
	assert.Equal(t, "A", states[0].ID)

	a, err := m.State("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, a.Targets())

	_, err = m.State("Z")
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	assert.NoError(t, m.Validate())
}

func TestMachine_MustRegisterPanics(t *testing.T) {
	m := moore.New("A")
	m.MustRegister(domain.State{ID: "A"})
	assert.Panics(t, func() { m.MustRegister(domain.State{ID: "A"}) })
}

func TestMachine_ContextAPI(t *testing.T) {
	m := moore.New("A")

	_, ok := m.ContextData("missing")
	assert.False(t, ok)

	m.SetContextData("a", 1)
	m.SetContextDataMap(map[string]any{"b": "two"})
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m.ContextSnapshot())

	_, ok = m.NextState()
	assert.False(t, ok)
}
