// Package mcp exposes machine conversations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/input"
	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const machineURI = "moore://machine"

// SessionResponse is returned by start_session and get_session.
type SessionResponse struct {
	SessionID string         `json:"session_id" jsonschema_description:"Conversation identifier"`
	State     string         `json:"state" jsonschema_description:"Current state of the machine"`
	Completed bool           `json:"completed" jsonschema_description:"Whether the terminal state was reached"`
	Context   map[string]any `json:"context,omitempty" jsonschema_description:"Context data collected so far"`
	Path      []string       `json:"path,omitempty" jsonschema_description:"States visited so far"`
}

// TurnResponse is returned by run_turn.
type TurnResponse struct {
	SessionID    string         `json:"session_id" jsonschema_description:"Conversation identifier"`
	Reply        string         `json:"reply" jsonschema_description:"Assistant answer for this turn"`
	State        string         `json:"state" jsonschema_description:"State after the turn"`
	Transitioned bool           `json:"transitioned" jsonschema_description:"Whether the turn moved to another state"`
	Completed    bool           `json:"completed" jsonschema_description:"Whether the terminal state was reached"`
	Fields       map[string]any `json:"fields,omitempty" jsonschema_description:"Structured response of the model"`
}

// Server exposes a session.Manager over MCP.
type Server struct {
	sessions   *session.Manager
	definition moore.Definition
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for rejected calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, def moore.Definition, opts ...Option) *Server {
	s := &Server{
		sessions:   sessions,
		definition: def,
		mcpServer:  server.NewMCPServer("moore-mcp", strings.TrimSpace(moore.Version)),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new conversation with the machine and return its session ID."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartSession))

	s.mcpServer.AddTool(mcp.NewTool("run_turn",
		mcp.WithDescription("Send one user message to a conversation and get the assistant reply."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation identifier returned by start_session")),
		mcp.WithString("input", mcp.Required(), mcp.Description("User message")),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunTurn))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Describe the current state and context of a conversation."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))
}

func (s *Server) handleStartSession(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (SessionResponse, error) {
	id, err := s.sessions.Create(ctx)
	if err != nil {
		return SessionResponse{}, err
	}
	return s.describe(ctx, id)
}

func (s *Server) handleGetSession(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	return s.describe(ctx, id)
}

func (s *Server) describe(ctx context.Context, id string) (SessionResponse, error) {
	info, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{
		SessionID: info.ID,
		State:     info.State,
		Completed: info.Completed,
		Context:   info.Context,
		Path:      info.Path,
	}, nil
}

func (s *Server) handleRunTurn(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (TurnResponse, error) {
	id, _ := args["session_id"].(string)
	raw, _ := args["input"].(string)

	clean, err := input.Sanitize(raw, 0)
	if err != nil {
		s.logger.Warn("MCP run_turn: Input rejected", "err", err, "size", len(raw))
		return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	res, err := s.sessions.Run(ctx, id, clean)
	if err != nil {
		if errors.Is(err, domain.ErrProvider) {
			s.logger.Error("MCP run_turn: Provider failed", "session_id", id, "err", err)
		}
		return TurnResponse{}, err
	}

	return TurnResponse{
		SessionID:    id,
		Reply:        fmt.Sprint(res.Payload),
		State:        res.State,
		Transitioned: res.Transitioned,
		Completed:    res.Completed,
		Fields:       res.Reply.Fields,
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(machineURI, "Machine Definition",
		mcp.WithMIMEType("application/json"),
	), s.readMachine)
}

func (s *Server) readMachine(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.definition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode machine: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      machineURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
