package ports

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSession is a read-only Session used by the contract suite.
type staticSession struct {
	state string
	data  map[string]any
}

func (s *staticSession) CurrentState() string      { return s.state }
func (s *staticSession) NextState() (string, bool) { return "", false }
func (s *staticSession) Redirect(string) error     { return domain.ErrNoTurn }
func (s *staticSession) IsCompleted() bool         { return false }
func (s *staticSession) ContextData(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}
func (s *staticSession) SetContextData(key string, value any) { s.data[key] = value }
func (s *staticSession) ContextSnapshot() map[string]any {
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// RunRequestBuilderContract runs a suite of tests to verify that a RequestBuilder
// implementation produces requests the engine can rely on.
func RunRequestBuilderContract(t *testing.T, builder RequestBuilder) {
	ctx := context.Background()
	state := domain.State{
		ID:     "START",
		Prompt: "You are a light switch.",
		Transitions: map[string]string{
			"STATE_ON": "the user asks to turn the light on",
		},
	}
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}

	t.Run("Messages", func(t *testing.T) {
		req, err := builder.Build(ctx, domain.PromptInput{
			State:    state,
			Response: schema.Default(),
			Session:  &staticSession{state: "START", data: map[string]any{}},
			Input:    "turn it on",
			History:  history,
		})
		require.NoError(t, err)

		assert.Equal(t, "START", req.StateID)
		require.GreaterOrEqual(t, len(req.Messages), 4, "system, history and user messages expected")
		assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, req.Instruction, req.Messages[0].Content)

		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "turn it on"}, last)
		assert.Equal(t, history, req.Messages[1:3])
	})

	t.Run("Instruction lists transitions", func(t *testing.T) {
		req, err := builder.Build(ctx, domain.PromptInput{
			State:    state,
			Response: schema.Default(),
			Session:  &staticSession{state: "START", data: map[string]any{}},
			Input:    "x",
		})
		require.NoError(t, err)
		assert.Contains(t, req.Instruction, "You are a light switch.")
		assert.Contains(t, req.Instruction, "STATE_ON")
		assert.Contains(t, req.Instruction, "the user asks to turn the light on")
	})

	t.Run("Schema restricts next state", func(t *testing.T) {
		req, err := builder.Build(ctx, domain.PromptInput{
			State:    state,
			Response: schema.Default(),
			Session:  &staticSession{state: "START", data: map[string]any{}},
			Input:    "x",
		})
		require.NoError(t, err)
		require.NotNil(t, req.Schema)

		data, err := json.Marshal(req.Schema)
		require.NoError(t, err)
		var doc struct {
			Properties map[string]struct {
				Enum []string `json:"enum"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.ElementsMatch(t, []string{"START", "STATE_ON"}, doc.Properties[schema.NextStateField].Enum)
	})
}
