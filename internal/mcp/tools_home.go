package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"epilogue/internal/service"
)

func (s *Server) registerHomeTools() {
	// ── open_home ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_home",
		mcp.WithDescription("Show the home screen: load bookshelves and the books on the current bookshelf (or rerun the saved search)"),
	), s.handleOpenHome)

	// ── get_home_state ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_home_state",
		mcp.WithDescription("Return the books, bookshelves, current bookshelf and search text currently shown on the home screen"),
	), s.handleGetHomeState)

	// ── select_bookshelf ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_bookshelf",
		mcp.WithDescription("Show the books on a bookshelf and make it the current bookshelf"),
		mcp.WithString("bookshelfId",
			mcp.Description("ID of the bookshelf (see get_home_state)"),
			mcp.Required(),
		),
	), s.handleSelectBookshelf)

	// ── set_search_text ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_search_text",
		mcp.WithDescription("Type into the search field. Clearing it returns to the current bookshelf after a short delay."),
		mcp.WithString("text",
			mcp.Description("Search text; empty clears the field"),
		),
	), s.handleSetSearchText)

	// ── submit_search ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("submit_search",
		mcp.WithDescription("Search Google Books for the text in the search field. Only books with an ISBN and a cover are listed."),
		mcp.WithString("text",
			mcp.Description("Optional text to type before searching"),
		),
	), s.handleSubmitSearch)

	// ── remove_book ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_book",
		mcp.WithDescription("Remove a book from the current bookshelf (not supported yet)"),
		mcp.WithString("bookId",
			mcp.Description("ID of the book"),
			mcp.Required(),
		),
	), s.handleRemoveBook)
}

func (s *Server) handleOpenHome(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireSignedIn(ctx); res != nil {
		s.nav.Navigate(ctx, service.ScreenSignIn, nil)
		return res, nil
	}
	s.nav.Navigate(ctx, service.ScreenHome, nil)
	if err := s.shelves.Focus(ctx); err != nil {
		return mcp.NewToolResultError("Couldn't load books: " + err.Error()), nil
	}
	return jsonResult(s.shelves.State())
}

func (s *Server) handleGetHomeState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.shelves.State())
}

func (s *Server) handleSelectBookshelf(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "bookshelfId")
	if err != nil {
		return nil, err
	}
	if res := s.requireSignedIn(ctx); res != nil {
		return res, nil
	}
	if err := s.shelves.SelectShelf(ctx, id); err != nil {
		return mcp.NewToolResultError("Couldn't load bookshelf: " + err.Error()), nil
	}
	return jsonResult(s.shelves.State())
}

func (s *Server) handleSetSearchText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.shelves.ChangeSearchText(req.GetString("text", ""))
	return jsonResult(s.shelves.State())
}

func (s *Server) handleSubmitSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireSignedIn(ctx); res != nil {
		return res, nil
	}
	if _, ok := req.GetArguments()["text"]; ok {
		if text := req.GetString("text", ""); text != s.shelves.State().SearchText {
			s.shelves.ChangeSearchText(text)
		}
	}
	if err := s.shelves.SubmitSearch(ctx); err != nil {
		return mcp.NewToolResultError("Search failed: " + err.Error()), nil
	}
	return jsonResult(s.shelves.State())
}

func (s *Server) handleRemoveBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "bookId")
	if err != nil {
		return nil, err
	}
	s.shelves.RemoveBook(ctx, id)
	return textResult("Removing books from a bookshelf is not supported yet."), nil
}
