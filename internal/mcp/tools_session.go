package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"epilogue/internal/service"
)

func (s *Server) registerSessionTools() {
	// ── session_status ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Show whether a micro.blog account is signed in, with its username and default blog"),
	), s.handleSessionStatus)

	// ── sign_in_with_link ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sign_in_with_link",
		mcp.WithDescription("Sign in with the link micro.blog emails you. The last path segment of the link is the sign-in token."),
		mcp.WithString("url",
			mcp.Description("The sign-in link, e.g. epilogue://verify/abc123"),
			mcp.Required(),
		),
	), s.handleSignInWithLink)

	// ── sign_out ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sign_out",
		mcp.WithDescription("Sign out of Epilogue. Requires confirm=true."),
		mcp.WithBoolean("confirm",
			mcp.Description("Set to true to confirm signing out"),
		),
	), s.handleSignOut)

	// ── current_screen ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("current_screen",
		mcp.WithDescription("Show the navigation stack, root first"),
	), s.handleCurrentScreen)
}

func (s *Server) handleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session.Current(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(service.SessionView(sess))
}

func (s *Server) handleSignInWithLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := requiredString(req, "url")
	if err != nil {
		return nil, err
	}
	if _, ok := service.TokenFromURL(link); !ok {
		return mcp.NewToolResultError("That link does not contain a sign-in token."), nil
	}

	if err := s.session.HandleURL(ctx, link); err != nil {
		var signInErr *service.SignInError
		if errors.As(err, &signInErr) {
			return mcp.NewToolResultError("Error signing in: " + signInErr.Reason), nil
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	// Signing in lands on the home screen.
	if err := s.shelves.Focus(ctx); err != nil {
		s.logger.Warn("load home after sign-in", zap.Error(err))
	}
	return s.handleSessionStatus(ctx, req)
}

func (s *Server) handleSignOut(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !req.GetBool("confirm", false) {
		return textResult("Sign out of Epilogue? Call sign_out again with confirm=true."), nil
	}
	s.shelves.Close()
	s.detail.Close()
	if err := s.session.SignOut(ctx); err != nil {
		return nil, err
	}
	return textResult("Signed out."), nil
}

func (s *Server) handleCurrentScreen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.nav.Entries())
}
