package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"epilogue/internal/service"
)

func (s *Server) registerDetailTools() {
	// ── show_book ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("show_book",
		mcp.WithDescription("Open the detail screen for a book listed on the home screen"),
		mcp.WithString("bookId",
			mcp.Description("ID of the book (see get_home_state)"),
			mcp.Required(),
		),
	), s.handleShowBook)

	// ── get_book_details ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_book_details",
		mcp.WithDescription("Return the open book and the bookshelves it can be added to"),
	), s.handleGetBookDetails)

	// ── add_book_to_bookshelf ──────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_book_to_bookshelf",
		mcp.WithDescription("Add the open book to a bookshelf, then return to the home screen"),
		mcp.WithString("bookshelfId",
			mcp.Description("ID of the bookshelf"),
			mcp.Required(),
		),
	), s.handleAddBookToBookshelf)
}

func (s *Server) handleShowBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "bookId")
	if err != nil {
		return nil, err
	}
	if err := s.shelves.SelectBook(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, ok := s.nav.Current().Params.(service.DetailParams)
	if !ok {
		return nil, fmt.Errorf("detail screen opened without a book")
	}
	s.detail.Open(ctx, params)
	return jsonResult(s.detail.State())
}

func (s *Server) handleGetBookDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.nav.Current().Screen != service.ScreenDetails {
		return mcp.NewToolResultError("No book is open. Use show_book first."), nil
	}
	return jsonResult(s.detail.State())
}

func (s *Server) handleAddBookToBookshelf(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	shelfID, err := requiredString(req, "bookshelfId")
	if err != nil {
		return nil, err
	}
	if res := s.requireSignedIn(ctx); res != nil {
		return res, nil
	}

	book := s.detail.State().Book
	if err := s.detail.AddToShelf(ctx, shelfID); err != nil {
		if errors.Is(err, service.ErrNoBookOpen) {
			return mcp.NewToolResultError("No book is open. Use show_book first."), nil
		}
		return mcp.NewToolResultError("Couldn't add book: " + err.Error()), nil
	}

	// Back on the home screen, refresh counts and the list.
	if err := s.shelves.Focus(ctx); err != nil {
		s.logger.Warn("refresh home after add", zap.Error(err))
	}
	return textResult(fmt.Sprintf("Added %q to bookshelf %s.", book.Title, shelfID)), nil
}
