package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSession struct {
	data map[string]any
}

func (s *memSession) CurrentState() string      { return "START" }
func (s *memSession) NextState() (string, bool) { return "", false }
func (s *memSession) Redirect(string) error     { return domain.ErrNoTurn }
func (s *memSession) IsCompleted() bool         { return false }
func (s *memSession) ContextData(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}
func (s *memSession) SetContextData(key string, value any) { s.data[key] = value }
func (s *memSession) ContextSnapshot() map[string]any   { return s.data }

func turn(transitioned bool) domain.Turn {
	return domain.Turn{
		Reply: domain.Reply{
			Content: "Thanks Ann",
			Fields:  map[string]any{"content": "Thanks Ann", "user_name": "Ann"},
		},
		Decision: domain.Decision{Transitioned: transitioned},
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"echo", "fields"}, r.Names())

	h, err := r.Lookup("echo")
	require.NoError(t, err)
	out, err := h(context.Background(), &memSession{}, turn(false))
	require.NoError(t, err)
	assert.Equal(t, "Thanks Ann", out)

	_, err = r.Lookup("missing")
	assert.EqualError(t, err, "handler not found: missing")

	r.Register("echo", Fields)
	h, _ = r.Lookup("echo")
	out, _ = h(context.Background(), &memSession{}, turn(false))
	assert.IsType(t, map[string]any{}, out)
}

func TestSaveTo(t *testing.T) {
	s := &memSession{data: map[string]any{}}
	h := SaveTo("verified_user")

	out, err := h(context.Background(), s, turn(false))
	require.NoError(t, err)
	assert.Equal(t, "Thanks Ann", out)
	assert.Empty(t, s.data)

	_, err = h(context.Background(), s, turn(true))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user_name": "Ann"}, s.data["verified_user"])
}

func TestChain(t *testing.T) {
	s := &memSession{data: map[string]any{}}
	boom := errors.New("boom")

	out, err := Chain(SaveTo("u"), Echo)(context.Background(), s, turn(true))
	require.NoError(t, err)
	assert.Equal(t, "Thanks Ann", out)
	assert.Contains(t, s.data, "u")

	failing := func(context.Context, domain.Session, domain.Turn) (any, error) { return nil, boom }
	_, err = Chain(Echo, failing)(context.Background(), s, turn(false))
	assert.ErrorIs(t, err, boom)
}
