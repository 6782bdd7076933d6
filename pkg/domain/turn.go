package domain

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/moore/pkg/schema"
	"github.com/invopop/jsonschema"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is what the provider receives for one turn.
type Request struct {
	StateID     string             `json:"state_id"`
	Model       string             `json:"model,omitempty"`
	Instruction string             `json:"instruction"`
	Messages    []Message          `json:"messages"`
	Schema      *jsonschema.Schema `json:"schema"`
	Temperature *float64           `json:"temperature,omitempty"`
}

// PromptInput carries everything needed to build a Request.
type PromptInput struct {
	State    State
	Response *jsonschema.Schema
	Session  Session
	Input    string
	History  []Message
	Model    string
}

// Reply is the parsed structured reply of the model.
type Reply struct {
	// Content is the free-text answer, taken from the "content" field when present.
	Content string `json:"content"`
	// NextState is the requested target. Empty means no request.
	NextState string `json:"next_state,omitempty"`
	// Fields holds the whole response object.
	Fields map[string]any `json:"fields,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Decode copies the reply fields into out, usually a pointer to the
// struct declared as the state's Model.
func (r Reply) Decode(out any) error {
	if err := schema.Decode(r.Fields, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// Decision is the outcome of resolving a reply against the current state.
type Decision struct {
	From string `json:"from"`
	// Target is the state the cursor will hold after the turn.
	Target string `json:"target"`
	// Requested is the raw next-state request of the model, if any.
	Requested    string `json:"requested,omitempty"`
	Transitioned bool   `json:"transitioned"`
	// Illegal is set when Requested named an undeclared target and was ignored.
	Illegal bool `json:"illegal,omitempty"`
}

// Turn describes the turn in progress to a handler.
type Turn struct {
	ID       string
	Input    string
	Reply    Reply
	Decision Decision
}

// RunResult is returned by a successful turn.
type RunResult struct {
	TurnID       string         `json:"turn_id"`
	Payload      any            `json:"payload"`
	State        string         `json:"state"`
	Transitioned bool           `json:"transitioned"`
	Completed    bool           `json:"completed"`
	Reply        Reply          `json:"reply"`
	Context      map[string]any `json:"context,omitempty"`
}
