package runtime

import (
	"maps"
	"sort"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/invopop/jsonschema"
)

// compiledState is a registered declaration plus its response schema.
type compiledState struct {
	state    domain.State
	response *jsonschema.Schema
}

// Registry holds the state declarations of one machine.
// States are only ever added; there is no deregistration.
type Registry struct {
	states map[string]*compiledState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*compiledState)}
}

// Register adds a declaration. The transition table is copied, so later
// changes to the caller's map have no effect.
func (r *Registry) Register(s domain.State) error {
	if s.ID == "" {
		return &domain.InvalidStateError{Reason: "empty id"}
	}
	if _, exists := r.states[s.ID]; exists {
		return &domain.DuplicateStateError{StateID: s.ID}
	}
	for target := range s.Transitions {
		if target == "" {
			return &domain.InvalidStateError{StateID: s.ID, Reason: "transition with empty target"}
		}
	}

	response, err := responseSchema(s)
	if err != nil {
		return err
	}

	s.Transitions = maps.Clone(s.Transitions)
	r.states[s.ID] = &compiledState{state: s, response: response}
	return nil
}

func responseSchema(s domain.State) (*jsonschema.Schema, error) {
	switch {
	case s.Model != nil:
		rs, err := schema.Reflect(s.Model)
		if err != nil {
			return nil, &domain.InvalidStateError{StateID: s.ID, Reason: err.Error()}
		}
		return rs, nil
	case len(s.Schema) > 0:
		return s.Schema.JSONSchema(), nil
	default:
		return schema.Default(), nil
	}
}

// Get returns the declaration registered under id.
func (r *Registry) Get(id string) (domain.State, error) {
	c, err := r.lookup(id)
	if err != nil {
		return domain.State{}, err
	}
	return c.state, nil
}

func (r *Registry) lookup(id string) (*compiledState, error) {
	c, ok := r.states[id]
	if !ok {
		return nil, &domain.UnknownStateError{StateID: id}
	}
	return c, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.states[id]
	return ok
}

// Len returns the number of registered states.
func (r *Registry) Len() int {
	return len(r.states)
}

// List returns every declaration sorted by ID.
func (r *Registry) List() []domain.State {
	out := make([]domain.State, 0, len(r.states))
	for _, c := range r.states {
		out = append(out, c.state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
