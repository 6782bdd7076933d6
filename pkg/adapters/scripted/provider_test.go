package scripted

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ReplaysInOrder(t *testing.T) {
	boom := errors.New("boom")
	p := New().
		Reply("hi", "").
		Reply("on", "STATE_ON").
		Fail(boom)
	ctx := context.Background()

	raw, err := p.Complete(ctx, domain.Request{StateID: "START"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"content":"hi"}}`, string(raw))

	raw, err = p.Complete(ctx, domain.Request{StateID: "START"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"content":"on"},"next_state":"STATE_ON"}`, string(raw))

	_, err = p.Complete(ctx, domain.Request{StateID: "STATE_ON"})
	assert.ErrorIs(t, err, boom)

	_, err = p.Complete(ctx, domain.Request{})
	assert.ErrorIs(t, err, ErrExhausted)

	assert.Equal(t, 4, p.Calls())
	assert.Equal(t, "STATE_ON", p.Requests()[2].StateID)
}

func TestProvider_Echo(t *testing.T) {
	p := New().Echo()
	raw, err := p.Complete(context.Background(), domain.Request{
		StateID: "S",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "ping"},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"content":"ping"},"next_state":"S"}`, string(raw))
}

func TestProvider_CancelledContext(t *testing.T) {
	p := New().Reply("never", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, domain.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.Remaining())
	assert.Zero(t, p.Calls())
}

func TestProvider_EchoFillsSchema(t *testing.T) {
	response := schema.Schema{
		"content": schema.String(),
		"age":     schema.Int(),
		"vip":     schema.Bool(),
		"tags":    schema.Slice(schema.String()),
		"tier":    schema.Enum("gold", "silver"),
	}.JSONSchema()

	raw, err := New().Echo().Complete(context.Background(), domain.Request{
		StateID:  "S",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
		Schema:   schema.Envelope(response, []string{"S"}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"content":"hi","age":0,"vip":false,"tags":[],"tier":"gold"},"next_state":"S"}`, string(raw))
	assert.NoError(t, schema.Check(response, raw))
}
