package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventTurnEnd           EventType = "turn_end"
	EventTransition        EventType = "transition"
	EventIllegalTransition EventType = "illegal_transition"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	TurnID    string    `json:"turn_id"`
	Machine   string    `json:"machine,omitempty"`
}

// TurnEvent is emitted at the start and at the end of every turn.
// Err, Duration and ProviderDuration are only filled on EventTurnEnd.
type TurnEvent struct {
	EventBase
	StateID          string        `json:"state_id"`
	Input            string        `json:"input,omitempty"`
	NextStateID      string        `json:"next_state_id,omitempty"`
	Transitioned     bool          `json:"transitioned,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	ProviderDuration time.Duration `json:"provider_duration,omitempty"`
	Err              error         `json:"-"`
}

// TransitionEvent is emitted when the cursor moves, or when a requested move was rejected.
type TransitionEvent struct {
	EventBase
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart         func(context.Context, *TurnEvent)
	OnTurnEnd           func(context.Context, *TurnEvent)
	OnTransition        func(context.Context, *TransitionEvent)
	OnIllegalTransition func(context.Context, *TransitionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurnStart:         chain(h.OnTurnStart, other.OnTurnStart),
		OnTurnEnd:           chain(h.OnTurnEnd, other.OnTurnEnd),
		OnTransition:        chain(h.OnTransition, other.OnTransition),
		OnIllegalTransition: chain(h.OnIllegalTransition, other.OnIllegalTransition),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
