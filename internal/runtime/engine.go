package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/ports"
	"github.com/aretw0/moore/pkg/prompt"
	"github.com/google/uuid"
)

// Engine is the turn executor. It owns the registry, the context store and
// the cursor of one conversation and is driven by a single caller at a time.
type Engine struct {
	name     string
	initial  string
	terminal string
	model    string

	registry *Registry
	store    *ContextStore
	provider ports.Provider
	builder  ports.RequestBuilder
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	current     string
	pending     string
	inTurn      bool
	validated   bool
	history     []domain.Message
	fullHistory []domain.Message
	path        []string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTerminalState sets the state that completes the machine.
func WithTerminalState(id string) EngineOption {
	return func(e *Engine) {
		e.terminal = id
	}
}

// WithProvider sets the model provider.
func WithProvider(p ports.Provider) EngineOption {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithRequestBuilder replaces the default prompt builder.
func WithRequestBuilder(b ports.RequestBuilder) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// WithModel sets the model name forwarded to the provider.
func WithModel(model string) EngineOption {
	return func(e *Engine) {
		e.model = model
	}
}

// WithName labels the engine in logs and events.
func WithName(name string) EngineOption {
	return func(e *Engine) {
		e.name = name
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the turn ID generator.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates an engine whose cursor starts at initial.
func NewEngine(initial string, opts ...EngineOption) *Engine {
	e := &Engine{
		initial:  initial,
		current:  initial,
		registry: NewRegistry(),
		store:    NewContextStore(),
		builder:  prompt.NewBuilder(),
		logger:   logging.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		path:     []string{initial},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.name != "" {
		e.logger = e.logger.With("machine", e.name)
	}
	return e
}

// Register adds state declarations. Targets are checked lazily, before the next turn.
func (e *Engine) Register(states ...domain.State) error {
	for _, s := range states {
		if err := e.registry.Register(s); err != nil {
			return err
		}
		e.validated = false
	}
	return nil
}

// Validate checks that the initial and terminal states exist and that every
// transition points at a registered state.
func (e *Engine) Validate() error {
	if e.validated {
		return nil
	}
	if !e.registry.Has(e.initial) {
		return &domain.UninitializedStateError{Role: "initial", StateID: e.initial}
	}
	if e.terminal != "" && !e.registry.Has(e.terminal) {
		return &domain.UninitializedStateError{Role: "terminal", StateID: e.terminal}
	}
	for _, s := range e.registry.List() {
		for _, target := range s.Targets() {
			if !e.registry.Has(target) {
				return &domain.UnknownStateError{StateID: target, From: s.ID}
			}
		}
	}
	e.validated = true
	return nil
}

// turnStats collects timings reported in the turn end event.
type turnStats struct {
	provider time.Duration
}

// Run executes one conversational turn.
func (e *Engine) Run(ctx context.Context, input string) (*domain.RunResult, error) {
	stateID := e.current
	turnID := e.newID()
	start := e.now()
	logger := e.logger.With("turn_id", turnID, "state", stateID)
	logger.Debug("Turn started", "input_len", len(input))
	e.emitTurnStart(ctx, turnID, stateID, input)

	var stats turnStats
	res, err := e.admitTurn(ctx, turnID, input, logger, &stats)

	end := &domain.TurnEvent{
		EventBase:        e.event(domain.EventTurnEnd, turnID),
		StateID:          stateID,
		Input:            input,
		Duration:         e.now().Sub(start),
		ProviderDuration: stats.provider,
		Err:              err,
	}
	if err != nil {
		logger.Warn("Turn failed", "err", err)
	} else {
		end.NextStateID = res.State
		end.Transitioned = res.Transitioned
		logger.Debug("Turn completed", "next_state", res.State, "transitioned", res.Transitioned, "duration", end.Duration)
	}
	if e.hooks.OnTurnEnd != nil {
		e.hooks.OnTurnEnd(ctx, end)
	}
	return res, err
}

// admitTurn rejects turns on completed or inconsistent machines before
// running them. Rejected turns still reach OnTurnEnd.
func (e *Engine) admitTurn(ctx context.Context, turnID, input string, logger *slog.Logger, stats *turnStats) (*domain.RunResult, error) {
	// 1. Completed machines accept no more turns.
	if e.IsCompleted() {
		return nil, &domain.MachineAlreadyCompletedError{StateID: e.current}
	}

	// 2. Declarations must be consistent before the first provider call.
	if err := e.Validate(); err != nil {
		return nil, err
	}

	c, err := e.registry.lookup(e.current)
	if err != nil {
		return nil, err
	}
	return e.runTurn(ctx, turnID, c, input, logger, stats)
}

func (e *Engine) runTurn(ctx context.Context, turnID string, c *compiledState, input string, logger *slog.Logger, stats *turnStats) (*domain.RunResult, error) {
	state := c.state

	// 3. Pre-process the input.
	if state.PreProcessInput != nil {
		if v := state.PreProcessInput(input, e); v != "" {
			input = v
		}
	}

	// 4. Build the provider request.
	req, err := e.builder.Build(ctx, domain.PromptInput{
		State:    state,
		Response: c.response,
		Session:  e,
		Input:    input,
		History:  slices.Clone(e.history),
		Model:    e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	// 5. Exactly one provider call. Nothing has been mutated so far.
	if e.provider == nil {
		return nil, &domain.ProviderError{StateID: state.ID, Err: ports.ErrNoProvider}
	}
	callStart := e.now()
	raw, err := e.provider.Complete(ctx, req)
	stats.provider = e.now().Sub(callStart)
	if err != nil {
		return nil, &domain.ProviderError{StateID: state.ID, Err: err}
	}
	reply, err := parseReply(raw, c.response)
	if err != nil {
		return nil, &domain.ProviderError{StateID: state.ID, Err: err}
	}

	// 6. Resolve the transition.
	decision, illegal := Resolve(state, reply)
	if illegal != nil {
		logger.Warn("Illegal transition ignored", "requested", decision.Requested, "err", illegal)
		if e.hooks.OnIllegalTransition != nil {
			e.hooks.OnIllegalTransition(ctx, &domain.TransitionEvent{
				EventBase: e.event(domain.EventIllegalTransition, turnID),
				From:      state.ID,
				To:        decision.Requested,
			})
		}
	}

	// 7. Handler.
	turn := domain.Turn{ID: turnID, Input: input, Reply: reply, Decision: decision}
	payload, target, err := e.invoke(ctx, state, turn)
	if err != nil {
		return nil, err
	}
	decision.Target = target
	decision.Transitioned = target != state.ID

	// 8. Commit.
	e.history = append(e.history,
		domain.Message{Role: domain.RoleUser, Content: input},
		domain.Message{Role: domain.RoleAssistant, Content: payloadText(payload, reply)},
	)
	e.fullHistory = append(e.fullHistory, e.history[len(e.history)-2:]...)

	if decision.Transitioned {
		e.current = decision.Target
		e.path = append(e.path, decision.Target)
		logger.Debug("State transition", "from", decision.From, "to", decision.Target)
		if e.hooks.OnTransition != nil {
			e.hooks.OnTransition(ctx, &domain.TransitionEvent{
				EventBase: e.event(domain.EventTransition, turnID),
				From:      decision.From,
				To:        decision.Target,
				Condition: state.Transitions[decision.Target],
			})
		}
	}

	return &domain.RunResult{
		TurnID:       turnID,
		Payload:      payload,
		State:        e.current,
		Transitioned: decision.Transitioned,
		Completed:    e.IsCompleted(),
		Reply:        reply,
		Context:      e.store.Snapshot(),
	}, nil
}

// invoke runs the state handler with the pending target exposed through
// NextState. It returns the payload and the target, which the handler may
// have redirected.
func (e *Engine) invoke(ctx context.Context, state domain.State, turn domain.Turn) (any, string, error) {
	target := turn.Decision.Target
	if state.Handler == nil {
		return turn.Reply.Content, target, nil
	}

	e.pending, e.inTurn = target, true
	defer func() {
		e.pending, e.inTurn = "", false
	}()

	payload, err := state.Handler(ctx, e, turn)
	if err != nil {
		return nil, "", &domain.HandlerError{StateID: state.ID, Err: err}
	}
	if payload == nil {
		payload = turn.Reply.Content
	}
	return payload, e.pending, nil
}

func payloadText(payload any, reply domain.Reply) string {
	switch v := payload.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return reply.Content
	}
}

func (e *Engine) event(t domain.EventType, turnID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, TurnID: turnID, Machine: e.name}
}

func (e *Engine) emitTurnStart(ctx context.Context, turnID, stateID, input string) {
	if e.hooks.OnTurnStart == nil {
		return
	}
	e.hooks.OnTurnStart(ctx, &domain.TurnEvent{
		EventBase: e.event(domain.EventTurnStart, turnID),
		StateID:   stateID,
		Input:     input,
	})
}

// --- Session ---

// CurrentState returns the state the cursor points at.
func (e *Engine) CurrentState() string { return e.current }

// NextState returns the target of the turn in progress.
// It is only meaningful while a handler runs.
func (e *Engine) NextState() (string, bool) { return e.pending, e.inTurn }

// Redirect replaces the pending target while a handler runs.
func (e *Engine) Redirect(target string) error {
	if !e.inTurn {
		return domain.ErrNoTurn
	}
	if target != e.current {
		c, err := e.registry.lookup(e.current)
		if err != nil {
			return err
		}
		if !c.state.CanTransitionTo(target) {
			return &domain.IllegalTransitionError{From: e.current, Requested: target}
		}
	}
	e.logger.Debug("Transition redirected by handler", "state", e.current, "from", e.pending, "to", target)
	e.pending = target
	return nil
}

// IsCompleted reports whether the cursor reached the terminal state.
func (e *Engine) IsCompleted() bool {
	return e.terminal != "" && e.current == e.terminal
}

// ContextData returns the value stored under key.
func (e *Engine) ContextData(key string) (any, bool) { return e.store.Get(key) }

// SetContextData stores value under key.
func (e *Engine) SetContextData(key string, value any) { e.store.Set(key, value) }

// SetContextDataMap stores every entry of values.
func (e *Engine) SetContextDataMap(values map[string]any) { e.store.Merge(values) }

// ContextSnapshot returns a shallow copy of the context data.
func (e *Engine) ContextSnapshot() map[string]any { return e.store.Snapshot() }

// --- Introspection ---

func (e *Engine) Name() string     { return e.name }
func (e *Engine) Initial() string  { return e.initial }
func (e *Engine) Terminal() string { return e.terminal }

// States returns the registered declarations sorted by ID.
func (e *Engine) States() []domain.State { return e.registry.List() }

// State returns a single declaration.
func (e *Engine) State(id string) (domain.State, error) { return e.registry.Get(id) }

// History returns the chat history sent to the provider.
func (e *Engine) History() []domain.Message { return slices.Clone(e.history) }

// SetHistory replaces the chat history sent to the provider.
// The full history is left untouched.
func (e *Engine) SetHistory(messages []domain.Message) { e.history = slices.Clone(messages) }

// FullHistory returns every message exchanged since creation or the last Reset.
func (e *Engine) FullHistory() []domain.Message { return slices.Clone(e.fullHistory) }

// Path returns the states visited so far, starting with the initial state.
func (e *Engine) Path() []string { return slices.Clone(e.path) }

// Reset moves the cursor back to the initial state and clears the context and histories.
func (e *Engine) Reset() {
	e.current = e.initial
	e.pending, e.inTurn = "", false
	e.history = nil
	e.fullHistory = nil
	e.path = []string{e.initial}
	e.store.Clear()
}
