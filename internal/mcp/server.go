package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"epilogue/internal/service"
)

// Server is the MCP server for Epilogue.
// It drives the same controllers as the desktop window so an agent can
// browse bookshelves, search and add books.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger

	session *service.SessionService
	shelves *service.ShelfController
	detail  *service.DetailController
	nav     *service.NavStack
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Session *service.SessionService
	Shelves *service.ShelfController
	Detail  *service.DetailController
	Nav     *service.NavStack
	Logger  *zap.Logger
	Version string
}

// New creates and configures a new MCP server with all tools, resources and prompts.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = "1.0.0"
	}
	s := &Server{
		logger:  logger.Named("mcp"),
		session: deps.Session,
		shelves: deps.Shelves,
		detail:  deps.Detail,
		nav:     deps.Nav,
	}

	s.mcp = server.NewMCPServer(
		"epilogue-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerSessionTools()
	s.registerHomeTools()
	s.registerDetailTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Close cancels any request still running in the controllers.
func (s *Server) Close() {
	s.shelves.Close()
	s.detail.Close()
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := marshalJSON(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(text), nil
}

// requireSignedIn returns a tool error result when there is no session.
func (s *Server) requireSignedIn(ctx context.Context) *mcp.CallToolResult {
	if s.session.SignedIn(ctx) {
		return nil
	}
	return mcp.NewToolResultError("Not signed in. Open the sign-in link from your email with sign_in_with_link.")
}
