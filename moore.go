package moore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/moore/internal/runtime"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/ports"
)

// DefaultModel is the model requested when none is configured.
const DefaultModel = "gpt-4o-2024-08-06"

// Machine is the high-level entry point of the library.
// It wraps the internal runtime and provides a simplified API for consumers.
//
// A Machine is not safe for concurrent use: turns depend on the cursor left
// by the previous one, so callers serialize Run per Machine.
type Machine struct {
	runtime *runtime.Engine
	name    string
}

// Option defines a functional option for configuring the Machine.
type Option func(*config)

type config struct {
	name        string
	runtimeOpts []runtime.EngineOption
}

// WithTerminalState marks the state whose arrival completes the machine.
func WithTerminalState(id string) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithTerminalState(id))
	}
}

// WithProvider sets the model provider used for every turn.
func WithProvider(p ports.Provider) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithProvider(p))
	}
}

// WithRequestBuilder replaces the default prompt builder.
func WithRequestBuilder(b ports.RequestBuilder) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithRequestBuilder(b))
	}
}

// WithModel sets the model name forwarded to the provider.
func WithModel(model string) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithModel(model))
	}
}

// WithName labels the machine in logs and events.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets a custom structured logger for the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithLogger(logger))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithTurnIDs overrides the turn ID generator (UUIDs by default).
func WithTurnIDs(gen func() string) Option {
	return func(c *config) {
		c.runtimeOpts = append(c.runtimeOpts, runtime.WithIDGenerator(gen))
	}
}

// New creates a Machine whose conversation starts in initial.
// The initial and terminal states must be registered before the first Run.
func New(initial string, opts ...Option) *Machine {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithModel(DefaultModel),
		runtime.WithName(c.name),
	}
	// Caller options come last so they override the defaults.
	runtimeOpts = append(runtimeOpts, c.runtimeOpts...)

	return &Machine{
		runtime: runtime.NewEngine(initial, runtimeOpts...),
		name:    c.name,
	}
}

// Register adds state declarations.
// It fails with domain.ErrDuplicateState or domain.ErrInvalidState.
func (m *Machine) Register(states ...domain.State) error {
	return m.runtime.Register(states...)
}

// MustRegister is like Register but panics on error.
func (m *Machine) MustRegister(states ...domain.State) {
	if err := m.Register(states...); err != nil {
		panic(fmt.Sprintf("moore: %v", err))
	}
}

// Validate checks the registered declarations. Run calls it automatically.
func (m *Machine) Validate() error {
	return m.runtime.Validate()
}

// Run executes one conversational turn.
//
// It fails with domain.ErrMachineCompleted once the terminal state was
// reached, and with domain.ErrProvider when the model call fails; in both
// cases cursor, context and history are unchanged.
func (m *Machine) Run(ctx context.Context, input string) (*domain.RunResult, error) {
	return m.runtime.Run(ctx, input)
}

// IsCompleted reports whether the terminal state was reached.
func (m *Machine) IsCompleted() bool { return m.runtime.IsCompleted() }

// CurrentState returns the state the next turn will run in.
func (m *Machine) CurrentState() string { return m.runtime.CurrentState() }

// NextState returns the pending target while a handler runs.
func (m *Machine) NextState() (string, bool) { return m.runtime.NextState() }

// ContextData returns the value stored under key, and false when absent.
func (m *Machine) ContextData(key string) (any, bool) { return m.runtime.ContextData(key) }

// Redirect replaces the pending target of the turn in progress.
// See domain.Session.
func (m *Machine) Redirect(target string) error { return m.runtime.Redirect(target) }

// SetContextData stores value under key.
func (m *Machine) SetContextData(key string, value any) { m.runtime.SetContextData(key, value) }

// SetContextDataMap stores every entry of values.
func (m *Machine) SetContextDataMap(values map[string]any) { m.runtime.SetContextDataMap(values) }

// ContextSnapshot returns a shallow copy of the context data.
func (m *Machine) ContextSnapshot() map[string]any { return m.runtime.ContextSnapshot() }

// History returns the chat history sent to the provider.
func (m *Machine) History() []domain.Message { return m.runtime.History() }

// SetHistory replaces the chat history sent to the provider.
func (m *Machine) SetHistory(messages []domain.Message) { m.runtime.SetHistory(messages) }

// FullHistory returns every message exchanged since creation or the last Reset.
func (m *Machine) FullHistory() []domain.Message { return m.runtime.FullHistory() }

// Path returns the visited states, starting with the initial state.
func (m *Machine) Path() []string { return m.runtime.Path() }

// Reset returns to the initial state and clears context and histories.
func (m *Machine) Reset() { m.runtime.Reset() }

// States returns the registered declarations sorted by ID.
func (m *Machine) States() []domain.State { return m.runtime.States() }

// State returns the declaration registered under id.
func (m *Machine) State(id string) (domain.State, error) { return m.runtime.State(id) }

// Initial returns the initial state ID.
func (m *Machine) Initial() string { return m.runtime.Initial() }

// Terminal returns the terminal state ID, or "" when none is configured.
func (m *Machine) Terminal() string { return m.runtime.Terminal() }

// Name returns the label given with WithName.
func (m *Machine) Name() string { return m.name }

// StateInfo is the serializable view of a registered state.
type StateInfo struct {
	ID          string            `json:"id"`
	Prompt      string            `json:"prompt"`
	Transitions map[string]string `json:"transitions,omitempty"`
	Fields      []string          `json:"fields,omitempty"`
}

// Definition describes the machine graph.
type Definition struct {
	Name     string      `json:"name,omitempty"`
	Initial  string      `json:"initial"`
	Terminal string      `json:"terminal,omitempty"`
	States   []StateInfo `json:"states"`
}

// Definition returns the registered graph, states sorted by ID.
func (m *Machine) Definition() Definition {
	states := m.States()
	def := Definition{
		Name:     m.name,
		Initial:  m.Initial(),
		Terminal: m.Terminal(),
		States:   make([]StateInfo, 0, len(states)),
	}
	for _, s := range states {
		info := StateInfo{ID: s.ID, Prompt: s.Prompt, Transitions: s.Transitions}
		for name := range s.Schema {
			info.Fields = append(info.Fields, name)
		}
		sort.Strings(info.Fields)
		def.States = append(def.States, info)
	}
	return def
}
