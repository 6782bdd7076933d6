package prompt_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/ports"
	"github.com/aretw0/moore/pkg/prompt"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	data map[string]any
}

func (s *fakeSession) CurrentState() string      { return "START" }
func (s *fakeSession) NextState() (string, bool) { return "", false }
func (s *fakeSession) Redirect(string) error     { return domain.ErrNoTurn }
func (s *fakeSession) IsCompleted() bool         { return false }
func (s *fakeSession) ContextData(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}
func (s *fakeSession) SetContextData(key string, value any) { s.data[key] = value }
func (s *fakeSession) ContextSnapshot() map[string]any   { return s.data }

func TestBuilder_Contract(t *testing.T) {
	ports.RunRequestBuilderContract(t, prompt.NewBuilder())
}

func TestBuilder_RenderContext(t *testing.T) {
	b := prompt.NewBuilder()

	tests := []struct {
		name string
		text string
		data map[string]any
		want string
	}{
		{"plain", "Hello there.", nil, "Hello there."},
		{"value", "Hello, {{ .name }} is here.", map[string]any{"name": "John"}, "Hello, John is here."},
		{"missing", "Hello, {{ .name }}.", map[string]any{}, "Hello, ."},
		{"default", "Hello, {{ default \"friend\" .name }}.", map[string]any{}, "Hello, friend."},
		{"nil data", "Hello, {{ .name }}.", nil, "Hello, ."},
		{"nil value", "Hello, {{ .name }}.", map[string]any{"name": nil}, "Hello, ."},
		{"missing nested", "City: {{ .user.city }}.", map[string]any{"user": map[string]any{"name": "Ann"}}, "City: ."},
		{"root variable", "{{ range .items }}{{ $.sep }}{{ . }}{{ end }}", map[string]any{"items": []string{"a", "b"}}, "ab"},
		{"literal placeholder kept", "Note: {{ .note }}", map[string]any{"note": "<no value>"}, "Note: <no value>"},
		{"literal placeholder beside missing", "{{ .note }}|{{ .name }}", map[string]any{"note": "x <no value> y"}, "x <no value> y|"},
		{"missing range", "[{{ range .items }}{{ . }}{{ end }}]", map[string]any{}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Render("S", tt.text, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilder_RenderLeavesContextUntouched(t *testing.T) {
	user := map[string]any{"name": "Ann"}
	data := map[string]any{"user": user}

	got, err := prompt.NewBuilder().Render("S", "{{ .user.name }} {{ .user.city }} {{ .topic }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Ann  ", got)
	assert.Equal(t, map[string]any{"user": map[string]any{"name": "Ann"}}, data)
	assert.Len(t, user, 1)
}

func TestBuilder_StrictTemplates(t *testing.T) {
	b := prompt.NewBuilder(prompt.WithStrictTemplates())
	_, err := b.Render("S", "Hi {{ .name }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `state "S"`)
}

func TestBuilder_ParseError(t *testing.T) {
	_, err := prompt.NewBuilder().Render("S", "Hi {{ .name ", nil)
	require.Error(t, err)
}

func TestTransitions(t *testing.T) {
	state := domain.State{
		ID: "START",
		Transitions: map[string]string{
			"STATE_ON":  "If user says to turn on the light",
			"STATE_OFF": "If user says to turn off the light",
		},
	}
	got := prompt.Transitions(state)

	assert.Contains(t, got, "You are currently in START")
	// Targets are listed in a stable order.
	off := strings.Index(got, "- STATE_OFF: If user says to turn off the light")
	on := strings.Index(got, "- STATE_ON: If user says to turn on the light")
	require.NotEqual(t, -1, off)
	require.NotEqual(t, -1, on)
	assert.Less(t, off, on)

	none := prompt.Transitions(domain.State{ID: "END"})
	assert.Contains(t, none, "no transitions available")
}

func TestBuilder_Hooks(t *testing.T) {
	temp := 0.2
	state := domain.State{
		ID:          "START",
		Prompt:      "Base for {{ .user }}",
		Temperature: &temp,
		PreProcessPrompt: func(p string, s domain.Session) string {
			return strings.ToUpper(p)
		},
		PreProcessChat: func(msgs []domain.Message, s domain.Session) []domain.Message {
			// keep only the system prompt and the newest message
			return []domain.Message{msgs[0], msgs[len(msgs)-1]}
		},
	}

	req, err := prompt.NewBuilder().Build(context.Background(), domain.PromptInput{
		State:   state,
		Session: &fakeSession{data: map[string]any{"user": "ann"}},
		Input:   "hello",
		History: []domain.Message{{Role: domain.RoleUser, Content: "old"}},
		Model:   "gpt-test",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(req.Instruction, "BASE FOR ANN"))
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "hello", req.Messages[1].Content)
	assert.Equal(t, "gpt-test", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)
}

func TestBuilder_DefaultTemperature(t *testing.T) {
	req, err := prompt.NewBuilder(prompt.WithDefaultTemperature(0.5)).Build(context.Background(), domain.PromptInput{
		State:    domain.State{ID: "S", Prompt: "p"},
		Response: schema.Default(),
		Session:  &fakeSession{data: map[string]any{}},
	})
	require.NoError(t, err)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.5, *req.Temperature)
}
