package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/invopop/jsonschema"
)

// Resolve decides where the cursor goes after a reply.
//
//   - no request, or a request for the current state: stay
//   - a request for a declared target: transition
//   - anything else: stay, and report an *domain.IllegalTransitionError
//
// The returned decision is always usable, even when the error is non-nil.
func Resolve(state domain.State, reply domain.Reply) (domain.Decision, error) {
	d := domain.Decision{
		From:      state.ID,
		Target:    state.ID,
		Requested: reply.NextState,
	}

	switch req := reply.NextState; {
	case req == "" || req == state.ID:
		return d, nil
	case state.CanTransitionTo(req):
		d.Target = req
		d.Transitioned = true
		return d, nil
	default:
		d.Illegal = true
		return d, &domain.IllegalTransitionError{From: state.ID, Requested: req}
	}
}

// parseReply validates a provider document and extracts the reply.
func parseReply(raw json.RawMessage, response *jsonschema.Schema) (domain.Reply, error) {
	if err := schema.Check(response, raw); err != nil {
		return domain.Reply{}, fmt.Errorf("malformed reply: %w", err)
	}

	var env struct {
		Response  map[string]any `json:"response"`
		NextState *string        `json:"next_state"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Reply{}, fmt.Errorf("malformed reply: %w", err)
	}

	reply := domain.Reply{
		Fields: env.Response,
		Raw:    append(json.RawMessage(nil), raw...),
	}
	if env.NextState != nil {
		reply.NextState = strings.TrimSpace(*env.NextState)
	}
	if content, ok := env.Response[schema.ContentField].(string); ok {
		reply.Content = content
	}
	return reply, nil
}
