// Package redis provides Redis-backed infrastructure for machines: a turn
// journal on a Redis stream and a distributed lock for session managers.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultMaxLen caps the stream length (approximately).
const DefaultMaxLen = 10000

// Entry is one journal record.
type Entry struct {
	ID        string
	Type      domain.EventType
	TurnID    string
	Machine   string
	Timestamp time.Time
	Fields    map[string]string
}

// Journal appends machine events to a Redis stream.
type Journal struct {
	client  backend.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the Journal.
type Option func(*Journal)

// WithMaxLen caps the stream at roughly n entries.
func WithMaxLen(n int64) Option {
	return func(j *Journal) {
		j.maxLen = n
	}
}

// WithTimeout bounds each write.
func WithTimeout(d time.Duration) Option {
	return func(j *Journal) {
		j.timeout = d
	}
}

// WithLogger configures a logger for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// NewJournal creates a journal writing to stream.
func NewJournal(client backend.UniversalClient, stream string, opts ...Option) *Journal {
	j := &Journal{
		client:  client,
		stream:  stream,
		maxLen:  DefaultMaxLen,
		timeout: 2 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Hooks returns lifecycle hooks that journal turn ends and transitions.
// Write failures are logged and never fail the turn.
func (j *Journal) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			fields := map[string]any{
				"state":        e.StateID,
				"next_state":   e.NextStateID,
				"transitioned": strconv.FormatBool(e.Transitioned),
				"duration_ms":  e.Duration.Milliseconds(),
			}
			if e.Err != nil {
				fields["error"] = e.Err.Error()
			}
			j.write(ctx, e.EventBase, fields)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			j.write(ctx, e.EventBase, map[string]any{"from": e.From, "to": e.To, "condition": e.Condition})
		},
		OnIllegalTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			j.write(ctx, e.EventBase, map[string]any{"from": e.From, "requested": e.To})
		},
	}
}

func (j *Journal) write(ctx context.Context, base domain.EventBase, fields map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()
	if err := j.Append(ctx, base, fields); err != nil {
		j.logger.Warn("Failed to journal event", "type", base.Type, "turn_id", base.TurnID, "err", err)
	}
}

// Append writes one event.
func (j *Journal) Append(ctx context.Context, base domain.EventBase, fields map[string]any) error {
	values := map[string]any{
		"type":      string(base.Type),
		"turn_id":   base.TurnID,
		"machine":   base.Machine,
		"timestamp": base.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		values[k] = v
	}

	err := j.client.XAdd(ctx, &backend.XAddArgs{
		Stream: j.stream,
		MaxLen: j.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", j.stream, err)
	}
	return nil
}

// Read returns up to count entries, oldest first. count <= 0 reads everything.
func (j *Journal) Read(ctx context.Context, count int64) ([]Entry, error) {
	var (
		msgs []backend.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = j.client.XRangeN(ctx, j.stream, "-", "+", count).Result()
	} else {
		msgs, err = j.client.XRange(ctx, j.stream, "-", "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", j.stream, err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		e := Entry{ID: msg.ID, Fields: make(map[string]string, len(msg.Values))}
		for k, v := range msg.Values {
			s := fmt.Sprint(v)
			switch k {
			case "type":
				e.Type = domain.EventType(s)
			case "turn_id":
				e.TurnID = s
			case "machine":
				e.Machine = s
			case "timestamp":
				e.Timestamp, _ = time.Parse(time.RFC3339Nano, s)
			default:
				e.Fields[k] = s
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Len returns the number of entries in the stream.
func (j *Journal) Len(ctx context.Context) (int64, error) {
	return j.client.XLen(ctx, j.stream).Result()
}
