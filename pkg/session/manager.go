package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a replica may hold a conversation lock.
const DefaultLockTTL = 30 * time.Second

// Factory builds a fresh Machine for a new conversation.
type Factory func(ctx context.Context, id string) (*moore.Machine, error)

// entry holds one conversation and its turn slot.
type entry struct {
	machine *moore.Machine
	slot    chan struct{}
	created time.Time
}

// Info describes a conversation.
type Info struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	Completed bool           `json:"completed"`
	Context   map[string]any `json:"context"`
	Path      []string       `json:"path"`
	CreatedAt time.Time      `json:"created_at"`
}

// Manager owns one Machine per conversation and serializes its turns.
type Manager struct {
	factory Factory

	mu       sync.Mutex
	sessions map[string]*entry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	newID   func() string
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking around every turn.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}

// NewManager creates a Manager that builds machines with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		sessions: make(map[string]*entry),
		lockTTL:  DefaultLockTTL,
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new conversation and returns its ID.
func (m *Manager) Create(ctx context.Context) (string, error) {
	id := m.newID()
	machine, err := m.factory(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return "", fmt.Errorf("session %q already exists", id)
	}
	m.sessions[id] = &entry{
		machine: machine,
		slot:    make(chan struct{}, 1),
		created: time.Now(),
	}
	m.logger.Debug("Session created", "session_id", id, "state", machine.CurrentState())
	return id, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e, nil
}

// Run executes one turn of the conversation id.
func (m *Manager) Run(ctx context.Context, id, input string) (*domain.RunResult, error) {
	var res *domain.RunResult
	err := m.WithLock(ctx, id, func(ctx context.Context, machine *moore.Machine) error {
		var err error
		res, err = machine.Run(ctx, input)
		return err
	})
	return res, err
}

// Get describes the conversation id.
func (m *Manager) Get(ctx context.Context, id string) (Info, error) {
	var info Info
	err := m.WithLock(ctx, id, func(_ context.Context, machine *moore.Machine) error {
		info = Info{
			ID:        id,
			State:     machine.CurrentState(),
			Completed: machine.IsCompleted(),
			Context:   machine.ContextSnapshot(),
			Path:      machine.Path(),
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	if e, lerr := m.lookup(id); lerr == nil {
		info.CreatedAt = e.created
	}
	return info, nil
}

// Delete drops the conversation id. A turn in progress finishes first.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(context.Context, *moore.Machine) error {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		m.logger.Debug("Session deleted", "session_id", id)
		return nil
	})
}

// List returns the active session IDs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// WithLock runs fn with exclusive access to the machine of conversation id.
// Waiting honors ctx. It fails with domain.ErrSessionNotFound when the
// conversation is deleted before the slot is acquired.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context, *moore.Machine) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.slot }()

	// The session may have been deleted while we waited for its slot.
	m.mu.Lock()
	live := m.sessions[id] == e
	m.mu.Unlock()
	if !live {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, e.machine)
}
