package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("add_book",
		mcp.WithPromptDescription("Find a book on Google Books and add it to one of your bookshelves"),
		mcp.WithArgument("query",
			mcp.ArgumentDescription("Title, author or ISBN to search for"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("bookshelf",
			mcp.ArgumentDescription("Name of the bookshelf to add it to (defaults to the current one)"),
		),
	), s.handleAddBookPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("reading_summary",
		mcp.WithPromptDescription("Summarize what is on each of your bookshelves"),
	), s.handleReadingSummaryPrompt)
}

func (s *Server) handleAddBookPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	query := req.Params.Arguments["query"]
	shelf := req.Params.Arguments["bookshelf"]
	if shelf == "" {
		shelf = "the current bookshelf"
	} else {
		shelf = fmt.Sprintf("the bookshelf named %q", shelf)
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Add %q to a bookshelf", query),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Add the book "%s" to %s. Follow these steps:

1. Call session_status. If not signed in, ask me for the sign-in link from my email and call sign_in_with_link.
2. Call open_home to load my bookshelves.
3. Call submit_search with text "%s" and pick the result that best matches.
4. Call show_book with its id, then add_book_to_bookshelf with the id of %s.

Tell me the title and author of the book you added.`, query, shelf, query, shelf),
				},
			},
		},
	}, nil
}

func (s *Server) handleReadingSummaryPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Summarize my bookshelves",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Summarize my reading. Call open_home, then call select_bookshelf for each bookshelf in the result
and list its books with their authors. Finish with one short paragraph about what I am reading now.`,
				},
			},
		},
	}, nil
}
