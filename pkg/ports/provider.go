package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aretw0/moore/pkg/domain"
)

// ErrNoProvider is returned when a turn is run on a machine without a provider.
var ErrNoProvider = errors.New("no provider configured")

// Provider sends a request to a language model.
// The returned document must follow req.Schema; the engine validates it
// again before use, so implementations may return the model output verbatim.
type Provider interface {
	Complete(ctx context.Context, req domain.Request) (json.RawMessage, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req domain.Request) (json.RawMessage, error)

func (f ProviderFunc) Complete(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// RequestBuilder constructs the provider request for one turn.
type RequestBuilder interface {
	Build(ctx context.Context, in domain.PromptInput) (domain.Request, error)
}
