// Package scripted provides a Provider that replays canned replies.
// It is used by tests, examples and the offline mode of the CLI.
package scripted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/invopop/jsonschema"
)

// ErrExhausted is returned when the script has no replies left.
var ErrExhausted = errors.New("scripted provider: no replies left")

// step is one scripted answer: a document, an error, or a function.
type step struct {
	raw json.RawMessage
	err error
	fn  func(domain.Request) (json.RawMessage, error)
}

// Provider replays its script in order and records every request.
// It is safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	steps    []step
	requests []domain.Request
	fallback *step
}

// New creates an empty script.
func New() *Provider {
	return &Provider{}
}

// Reply queues a reply with free-text content and an optional next state.
func (p *Provider) Reply(content, next string) *Provider {
	return p.ReplyFields(map[string]any{schema.ContentField: content}, next)
}

// ReplyFields queues a reply with an arbitrary response object.
func (p *Provider) ReplyFields(fields map[string]any, next string) *Provider {
	env := map[string]any{schema.ResponseField: fields}
	if next != "" {
		env[schema.NextStateField] = next
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return p.push(step{err: fmt.Errorf("scripted provider: %w", err)})
	}
	return p.push(step{raw: raw})
}

// Raw queues a document returned verbatim.
func (p *Provider) Raw(doc string) *Provider {
	return p.push(step{raw: json.RawMessage(doc)})
}

// Fail queues a failure.
func (p *Provider) Fail(err error) *Provider {
	return p.push(step{err: err})
}

// Func queues a reply computed from the request.
func (p *Provider) Func(fn func(domain.Request) (json.RawMessage, error)) *Provider {
	return p.push(step{fn: fn})
}

// Echo makes the provider answer with the last user message, staying in the
// current state, once the script is exhausted.
func (p *Provider) Echo() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = &step{fn: echo}
	return p
}

func (p *Provider) push(s step) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, s)
	return p
}

// Complete implements ports.Provider.
func (p *Provider) Complete(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	var s step
	switch {
	case len(p.steps) > 0:
		s = p.steps[0]
		p.steps = p.steps[1:]
	case p.fallback != nil:
		s = *p.fallback
	default:
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	p.mu.Unlock()

	if s.fn != nil {
		return s.fn(req)
	}
	return s.raw, s.err
}

// Requests returns a copy of the requests received so far.
func (p *Provider) Requests() []domain.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Request(nil), p.requests...)
}

// Calls returns the number of requests received so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Remaining returns the number of queued steps.
func (p *Provider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

func echo(req domain.Request) (json.RawMessage, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}

	response := map[string]any{schema.ContentField: last}
	// Fill the other required fields with zero values so that any state
	// schema accepts the echo.
	if req.Schema != nil && req.Schema.Properties != nil {
		if rs, ok := req.Schema.Properties.Get(schema.ResponseField); ok && rs.Properties != nil {
			response = make(map[string]any)
			for pair := rs.Properties.Oldest(); pair != nil; pair = pair.Next() {
				response[pair.Key] = zeroValue(pair.Value)
			}
			if _, ok := response[schema.ContentField]; ok {
				response[schema.ContentField] = last
			}
		}
	}

	return json.Marshal(map[string]any{
		schema.ResponseField:  response,
		schema.NextStateField: req.StateID,
	})
}

func zeroValue(s *jsonschema.Schema) any {
	if s == nil {
		return ""
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	switch s.Type {
	case "integer", "number":
		return 0
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		return map[string]any{}
	default:
		return ""
	}
}
