package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"epilogue/internal/service"
)

const (
	uriSession = "epilogue://session"
	uriHome    = "epilogue://home"
)

func (s *Server) registerResources() {
	// ── epilogue://session ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriSession,
		"Signed-in account",
		mcp.WithResourceDescription("Username, default blog and avatar of the signed-in micro.blog account"),
		mcp.WithMIMEType("application/json"),
	), s.handleSessionResource)

	// ── epilogue://home ────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriHome,
		"Home screen",
		mcp.WithResourceDescription("Books and bookshelves as last loaded"),
		mcp.WithMIMEType("application/json"),
	), s.handleHomeResource)
}

func (s *Server) handleSessionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sess, err := s.session.Current(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(uriSession, service.SessionView(sess))
}

func (s *Server) handleHomeResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(uriHome, s.shelves.State())
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	text, err := marshalJSON(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
