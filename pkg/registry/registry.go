// Package registry names state handlers so that machine definition files can
// reference them.
package registry

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
)

// Registry manages the available handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]domain.Handler
}

// NewRegistry creates a registry preloaded with the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]domain.Handler),
	}
	r.Register("echo", Echo)
	r.Register("fields", Fields)
	return r
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, h domain.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (domain.Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("handler not found: %s", name)
	}
	return h, nil
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Echo returns the free-text content of the reply.
func Echo(_ context.Context, _ domain.Session, t domain.Turn) (any, error) {
	return t.Reply.Content, nil
}

// Fields returns the whole structured response as the payload.
func Fields(_ context.Context, _ domain.Session, t domain.Turn) (any, error) {
	return maps.Clone(t.Reply.Fields), nil
}

// SaveTo returns a handler that stores the structured response under key
// when the turn transitions, and answers with the reply content.
// The content field itself is not stored.
func SaveTo(key string) domain.Handler {
	return func(_ context.Context, s domain.Session, t domain.Turn) (any, error) {
		if !t.Decision.Transitioned {
			return t.Reply.Content, nil
		}
		fields := maps.Clone(t.Reply.Fields)
		delete(fields, schema.ContentField)
		s.SetContextData(key, fields)
		return t.Reply.Content, nil
	}
}

// Chain runs handlers in order and returns the last non-nil payload.
// It stops at the first error.
func Chain(handlers ...domain.Handler) domain.Handler {
	return func(ctx context.Context, s domain.Session, t domain.Turn) (any, error) {
		var payload any
		for _, h := range handlers {
			out, err := h(ctx, s, t)
			if err != nil {
				return nil, err
			}
			if out != nil {
				payload = out
			}
		}
		return payload, nil
	}
}
