// Package config loads machine definitions from YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/pkg/adapters/openai"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/ports"
	"github.com/aretw0/moore/pkg/registry"
	"github.com/aretw0/moore/pkg/schema"
	"gopkg.in/yaml.v3"
)

// DefaultAPIKeyEnv is read when the file does not name another variable.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid machine definition")

// File is a machine definition.
type File struct {
	Name     string   `yaml:"name" json:"name"`
	Initial  string   `yaml:"initial" json:"initial"`
	Terminal string   `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Model    string   `yaml:"model,omitempty" json:"model,omitempty"`
	Provider Provider `yaml:"provider,omitempty" json:"provider,omitempty"`
	Journal  Journal  `yaml:"journal,omitempty" json:"journal,omitempty"`
	States   []State  `yaml:"states" json:"states"`
}

// Provider configures the OpenAI-compatible endpoint.
type Provider struct {
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Timeout   string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Journal configures the Redis turn journal. Empty Addr disables it.
type Journal struct {
	Addr   string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Stream string `yaml:"stream,omitempty" json:"stream,omitempty"`
	MaxLen int64  `yaml:"max_len,omitempty" json:"max_len,omitempty"`
}

// State is the file form of domain.State.
type State struct {
	ID          string            `yaml:"id" json:"id"`
	Prompt      string            `yaml:"prompt" json:"prompt"`
	Temperature *float64          `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Transitions map[string]string `yaml:"transitions,omitempty" json:"transitions,omitempty"`
	Schema      schema.Schema     `yaml:"schema,omitempty" json:"schema,omitempty"`
	// Handler names a handler of the registry.
	Handler string `yaml:"handler,omitempty" json:"handler,omitempty"`
	// SaveTo stores the structured response under this context key when
	// the turn transitions. It runs before Handler.
	SaveTo string `yaml:"save_to,omitempty" json:"save_to,omitempty"`
}

// Load reads path. The format follows the extension (.json, otherwise YAML).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine definition: %w", err)
	}

	var f File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the parts of the file the machine itself does not check.
func (f *File) Validate() error {
	if f.Initial == "" {
		return fmt.Errorf("%w: initial state is required", ErrInvalid)
	}
	if len(f.States) == 0 {
		return fmt.Errorf("%w: no states declared", ErrInvalid)
	}
	if f.Provider.Timeout != "" {
		if _, err := time.ParseDuration(f.Provider.Timeout); err != nil {
			return fmt.Errorf("%w: provider timeout: %v", ErrInvalid, err)
		}
	}
	return nil
}

// DomainStates converts the declarations, resolving handler names against reg.
func (f *File) DomainStates(reg *registry.Registry) ([]domain.State, error) {
	states := make([]domain.State, 0, len(f.States))
	for _, s := range f.States {
		ds := domain.State{
			ID:          s.ID,
			Prompt:      s.Prompt,
			Transitions: s.Transitions,
			Schema:      s.Schema,
			Temperature: s.Temperature,
		}

		var chain []domain.Handler
		if s.SaveTo != "" {
			chain = append(chain, registry.SaveTo(s.SaveTo))
		}
		if s.Handler != "" {
			if reg == nil {
				return nil, fmt.Errorf("%w: state %s: handler %q needs a registry", ErrInvalid, s.ID, s.Handler)
			}
			h, err := reg.Lookup(s.Handler)
			if err != nil {
				return nil, fmt.Errorf("%w: state %s: %v", ErrInvalid, s.ID, err)
			}
			chain = append(chain, h)
		}
		switch len(chain) {
		case 0:
		case 1:
			ds.Handler = chain[0]
		default:
			ds.Handler = registry.Chain(chain...)
		}

		states = append(states, ds)
	}
	return states, nil
}

// Build creates and validates a Machine from the file.
// opts are applied after the file settings.
func (f *File) Build(reg *registry.Registry, opts ...moore.Option) (*moore.Machine, error) {
	states, err := f.DomainStates(reg)
	if err != nil {
		return nil, err
	}

	base := []moore.Option{moore.WithName(f.Name)}
	if f.Terminal != "" {
		base = append(base, moore.WithTerminalState(f.Terminal))
	}
	if f.Model != "" {
		base = append(base, moore.WithModel(f.Model))
	}

	m := moore.New(f.Initial, append(base, opts...)...)
	if err := m.Register(states...); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewProvider creates the OpenAI-compatible provider described by the file.
// The API key is read from the environment.
func (f *File) NewProvider(opts ...openai.Option) (ports.Provider, error) {
	env := f.Provider.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv
	}
	key := os.Getenv(env)
	if key == "" && f.Provider.BaseURL == "" {
		return nil, fmt.Errorf("environment variable %s is not set", env)
	}

	base := []openai.Option{openai.WithModel(f.Model)}
	if f.Provider.BaseURL != "" {
		base = append(base, openai.WithBaseURL(f.Provider.BaseURL))
	}
	if f.Provider.Timeout != "" {
		d, err := time.ParseDuration(f.Provider.Timeout)
		if err != nil {
			return nil, fmt.Errorf("provider timeout: %w", err)
		}
		base = append(base, openai.WithTimeout(d))
	}
	return openai.New(key, append(base, opts...)...), nil
}
