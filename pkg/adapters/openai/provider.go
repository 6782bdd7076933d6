// Package openai implements ports.Provider on top of an OpenAI-compatible
// chat completions endpoint with structured outputs (response_format json_schema).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 60 * time.Second
	// DefaultMaxResponseSize bounds the body read from the API.
	DefaultMaxResponseSize = 8 << 20

	completionsPath = "/chat/completions"
	schemaName      = "turn_reply"
)

var (
	// ErrRefused is returned when the model refuses to answer.
	ErrRefused = errors.New("model refused the request")
	// ErrEmptyReply is returned when the API answers without content.
	ErrEmptyReply = errors.New("empty completion")
	// ErrResponseTooLarge is returned when the body exceeds the size limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Provider talks to a chat completions endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	timeout time.Duration
	maxBody int64
	logger  *slog.Logger
}

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithTimeout sets the request timeout. It applies to a client given with
// WithHTTPClient too, in any option order, without changing that client.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithMaxResponseSize bounds the response body. Larger bodies fail with
// ErrResponseTooLarge.
func WithMaxResponseSize(n int64) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxBody = n
		}
	}
}

// WithLogger configures a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a Provider authenticated with apiKey.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		maxBody: DefaultMaxResponseSize,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	switch {
	case p.client == nil:
		timeout := p.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		p.client = &http.Client{Timeout: timeout}
	case p.timeout > 0:
		c := *p.client
		c.Timeout = p.timeout
		p.client = &c
	}
	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict"`
	Schema any    `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete implements ports.Provider.
func (p *Provider) Complete(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   schemaName,
				Strict: true,
				Schema: req.Schema,
			},
		},
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+completionsPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(respBody)) > p.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, p.maxBody)
	}
	p.logger.Debug("Completion received",
		"state", req.StateID,
		"model", model,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Error != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: out.Error.Message, Type: out.Error.Type, Code: out.Error.Code}
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyReply
	}

	msg := out.Choices[0].Message
	if msg.Refusal != nil && *msg.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, *msg.Refusal)
	}
	if msg.Content == nil || *msg.Content == "" {
		return nil, ErrEmptyReply
	}
	return json.RawMessage(*msg.Content), nil
}

func parseAPIError(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{StatusCode: status, Message: errResp.Error.Message, Type: errResp.Error.Type, Code: errResp.Error.Code}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
