package domain

import (
	"context"
	"sort"

	"github.com/aretw0/moore/pkg/schema"
)

// Handler runs after the model replied and the transition was resolved.
// Its return value becomes the turn's payload. Returning a nil payload
// falls back to the reply's free-text content.
type Handler func(ctx context.Context, s Session, t Turn) (any, error)

// State declares one conversation state.
type State struct {
	// ID is the case-sensitive identifier, unique per machine.
	ID string `json:"id" yaml:"id"`

	// Prompt is the base instruction. It is rendered as a text/template
	// against the context data before every turn.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Transitions maps target state IDs to the natural-language condition
	// under which the model should choose them.
	Transitions map[string]string `json:"transitions,omitempty" yaml:"transitions,omitempty"`

	// Schema declares the named fields of the structured response.
	// Ignored when Model is set.
	Schema schema.Schema `json:"-" yaml:"-"`

	// Model is an optional struct prototype whose JSON Schema describes the response.
	Model any `json:"-" yaml:"-"`

	// Temperature is forwarded to the provider when set.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	Handler Handler `json:"-" yaml:"-"`

	// Optional hooks. An empty string result keeps the original value.
	PreProcessInput  func(input string, s Session) string          `json:"-" yaml:"-"`
	PreProcessPrompt func(prompt string, s Session) string         `json:"-" yaml:"-"`
	PreProcessChat   func(messages []Message, s Session) []Message `json:"-" yaml:"-"`
}

// Targets returns the declared transition targets in a stable order.
func (s State) Targets() []string {
	targets := make([]string, 0, len(s.Transitions))
	for id := range s.Transitions {
		targets = append(targets, id)
	}
	sort.Strings(targets)
	return targets
}

// CanTransitionTo reports whether target is a declared transition of s.
func (s State) CanTransitionTo(target string) bool {
	_, ok := s.Transitions[target]
	return ok
}

// Session is the view of a running machine handed to handlers and hooks.
type Session interface {
	CurrentState() string
	// NextState reports the pending target while a handler runs.
	// Outside a turn it returns false.
	NextState() (string, bool)
	// Redirect replaces the pending target while a handler runs. The target
	// must be the current state or one of its declared transitions, otherwise
	// it fails with *IllegalTransitionError. Outside a turn it fails with
	// ErrNoTurn.
	Redirect(target string) error
	IsCompleted() bool
	ContextData(key string) (any, bool)
	SetContextData(key string, value any)
	ContextSnapshot() map[string]any
}
