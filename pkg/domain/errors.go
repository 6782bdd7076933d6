package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateState is returned when a state ID is registered twice.
	ErrDuplicateState = errors.New("duplicate state")
	// ErrUnknownState is returned when a state ID is not registered.
	ErrUnknownState = errors.New("unknown state")
	// ErrUninitializedState is returned when the initial or terminal state was never registered.
	ErrUninitializedState = errors.New("uninitialized state")
	// ErrInvalidState is returned for malformed declarations.
	ErrInvalidState = errors.New("invalid state")
	// ErrMachineCompleted is returned when a turn is requested after the terminal state was reached.
	ErrMachineCompleted = errors.New("machine already completed")
	// ErrProvider is returned when the model provider fails or replies with an unusable payload.
	ErrProvider = errors.New("provider error")
	// ErrIllegalTransition marks a reply that requested an undeclared target.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrHandler is returned when a state handler fails.
	ErrHandler = errors.New("handler error")
	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoTurn is returned by Session.Redirect outside a handler.
	ErrNoTurn = errors.New("no turn in progress")
)

// DuplicateStateError reports a repeated registration.
type DuplicateStateError struct {
	StateID string
}

func (e *DuplicateStateError) Error() string {
	return fmt.Sprintf("state %q is already registered", e.StateID)
}

func (e *DuplicateStateError) Unwrap() error { return ErrDuplicateState }

// UnknownStateError reports a lookup or transition target that is not registered.
// From is set when the ID was found in a transition table.
type UnknownStateError struct {
	StateID string
	From    string
}

func (e *UnknownStateError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("state %q declares a transition to unknown state %q", e.From, e.StateID)
	}
	return fmt.Sprintf("state %q is not registered", e.StateID)
}

func (e *UnknownStateError) Unwrap() error { return ErrUnknownState }

// UninitializedStateError reports an initial or terminal state that was never registered.
type UninitializedStateError struct {
	Role    string // "initial" or "terminal"
	StateID string
}

func (e *UninitializedStateError) Error() string {
	return fmt.Sprintf("%s state %q has not been registered", e.Role, e.StateID)
}

func (e *UninitializedStateError) Unwrap() error { return ErrUninitializedState }

// InvalidStateError reports a malformed declaration.
type InvalidStateError struct {
	StateID string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %q: %s", e.StateID, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// MachineAlreadyCompletedError is returned by Run once the cursor sits on the terminal state.
type MachineAlreadyCompletedError struct {
	StateID string
}

func (e *MachineAlreadyCompletedError) Error() string {
	return fmt.Sprintf("machine already completed in terminal state %q", e.StateID)
}

func (e *MachineAlreadyCompletedError) Unwrap() error { return ErrMachineCompleted }

// ProviderError wraps a provider failure. Nothing was mutated when it is returned.
type ProviderError struct {
	StateID string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failed in state %q: %v", e.StateID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// IllegalTransitionError describes a rejected next-state request.
// Run reports it through logs and hooks only. Session.Redirect returns it.
type IllegalTransitionError struct {
	From      string
	Requested string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("state %q has no transition to %q", e.From, e.Requested)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// HandlerError wraps a failure returned by a state handler.
type HandlerError struct {
	StateID string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler of state %q failed: %v", e.StateID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandler }
