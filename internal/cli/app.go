// Package cli wires configuration, providers and adapters for the moore command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/adapters/openai"
	redisadapter "github.com/aretw0/moore/pkg/adapters/redis"
	"github.com/aretw0/moore/pkg/adapters/scripted"
	"github.com/aretw0/moore/pkg/config"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/observability"
	"github.com/aretw0/moore/pkg/ports"
	"github.com/aretw0/moore/pkg/registry"
	"github.com/aretw0/moore/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// DefaultJournalStream is used when the file enables a journal without naming a stream.
const DefaultJournalStream = "moore:journal"

// Options controls how an App is assembled.
type Options struct {
	ConfigPath string
	Debug      bool
	JSONLogs   bool
	// Offline replaces the model with a provider that echoes the input.
	Offline bool
	// Registerer receives the turn metrics. Nil disables them.
	Registerer prometheus.Registerer
	// Registry resolves handler names. Nil uses registry.NewRegistry.
	Registry *registry.Registry
}

// App holds everything needed to build machines for one definition file.
type App struct {
	File     *config.File
	Logger   *slog.Logger
	Provider ports.Provider

	registry *registry.Registry
	hooks    domain.LifecycleHooks
	redis    backend.UniversalClient
}

// NewApp loads the definition and prepares the provider and hooks.
func NewApp(opts Options) (*App, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := logging.New(level, opts.JSONLogs)

	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		File:     file,
		Logger:   logger,
		registry: opts.Registry,
	}
	if app.registry == nil {
		app.registry = registry.NewRegistry()
	}

	if opts.Offline {
		app.Provider = scripted.New().Echo()
	} else {
		app.Provider, err = file.NewProvider(openai.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	if opts.Debug {
		app.hooks = app.hooks.Merge(debugHooks(logger))
	}
	if opts.Registerer != nil {
		app.hooks = app.hooks.Merge(observability.NewMetrics(opts.Registerer).Hooks())
	}
	if file.Journal.Addr != "" {
		app.redis = backend.NewClient(&backend.Options{Addr: file.Journal.Addr})
		stream := file.Journal.Stream
		if stream == "" {
			stream = DefaultJournalStream
		}
		jopts := []redisadapter.Option{redisadapter.WithLogger(logger)}
		if file.Journal.MaxLen > 0 {
			jopts = append(jopts, redisadapter.WithMaxLen(file.Journal.MaxLen))
		}
		app.hooks = app.hooks.Merge(redisadapter.NewJournal(app.redis, stream, jopts...).Hooks())
	}

	return app, nil
}

// Machine builds a fresh, validated machine.
func (a *App) Machine(opts ...moore.Option) (*moore.Machine, error) {
	base := []moore.Option{
		moore.WithProvider(a.Provider),
		moore.WithLogger(a.Logger),
		moore.WithLifecycleHooks(a.hooks),
	}
	return a.File.Build(a.registry, append(base, opts...)...)
}

// Factory adapts Machine to session.Factory.
func (a *App) Factory() session.Factory {
	return func(_ context.Context, id string) (*moore.Machine, error) {
		m, err := a.Machine()
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		return m, nil
	}
}

// Definition describes the machine of the file.
func (a *App) Definition() (moore.Definition, error) {
	m, err := a.Machine()
	if err != nil {
		return moore.Definition{}, err
	}
	return m.Definition(), nil
}

// Locker returns a Redis lock when a journal address is configured, nil otherwise.
func (a *App) Locker() ports.DistributedLocker {
	if a.redis == nil {
		return nil
	}
	return redisadapter.NewLocker(a.redis, "moore:lock:")
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil && !errors.Is(err, backend.ErrClosed) {
		return err
	}
	return nil
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(_ context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn Start", "turn_id", e.TurnID, "state", e.StateID)
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.Debug("Turn End (Error)", "turn_id", e.TurnID, "state", e.StateID, "err", e.Err)
				return
			}
			logger.Debug("Turn End", "turn_id", e.TurnID, "state", e.NextStateID,
				"duration", e.Duration, "provider_duration", e.ProviderDuration)
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			logger.Debug("Transition", "from", e.From, "to", e.To)
		},
		OnIllegalTransition: func(_ context.Context, e *domain.TransitionEvent) {
			logger.Debug("Illegal Transition", "from", e.From, "requested", e.To)
		},
	}
}
