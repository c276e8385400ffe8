package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"epilogue/internal/googlebooks"
	"epilogue/internal/microblog"
	"epilogue/internal/service"
	"epilogue/internal/storage"
)

// fakeMicroblog serves the handful of micro.blog and Google Books endpoints the tools hit.
type fakeMicroblog struct {
	mu        sync.Mutex
	added     []string
	shelfHits int
}

func (f *fakeMicroblog) shelfLoads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shelfHits
}

func (f *fakeMicroblog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/account/verify":
		_ = r.ParseMultipartForm(1 << 20)
		if r.FormValue("token") == "bad" {
			_, _ = w.Write([]byte(`{"error":"Token has expired."}`))
			return
		}
		_, _ = w.Write([]byte(`{"username":"manton","token":"app-token"}`))
	case "/micropub":
		_, _ = w.Write([]byte(`{"destination":[{"uid":"https://manton.org/","name":"Manton","microblog-default":true}]}`))
	case "/books/bookshelves":
		_, _ = w.Write([]byte(`{"items":[{"id":1,"title":"Currently reading","_microblog":{"books_count":1}},{"id":2,"title":"Want to read","_microblog":{"books_count":0}}]}`))
	case "/books/bookshelves/1":
		f.mu.Lock()
		f.shelfHits++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"items":[{"id":11,"title":"Dune","image":"http://c/dune.jpg","authors":[{"name":"Frank Herbert"}],"_microblog":{"isbn":"9780441013593"}}]}`))
	case "/books/bookshelves/2":
		_, _ = w.Write([]byte(`{"items":[]}`))
	case "/books":
		_ = r.ParseMultipartForm(1 << 20)
		f.mu.Lock()
		f.added = append(f.added, r.FormValue("bookshelf_id")+":"+r.FormValue("isbn"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	case "/volumes":
		_, _ = w.Write([]byte(`{"items":[{"id":"hob","volumeInfo":{"title":"The Hobbit","authors":["J.R.R. Tolkien"],
			"industryIdentifiers":[{"type":"ISBN_13","identifier":"9780547928227"}],
			"imageLinks":{"smallThumbnail":"http://c/hobbit.jpg"}}}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestServer(t *testing.T) (*Server, *fakeMicroblog) {
	t.Helper()
	fake := &fakeMicroblog{}
	api := httptest.NewServer(fake)
	t.Cleanup(api.Close)

	db, err := storage.New(filepath.Join(t.TempDir(), "epilogue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	emitter := &service.MockEmitter{}
	prefs := storage.NewPreferenceStore(db)
	catalog := microblog.New(api.URL, 5*time.Second, logger)
	search := googlebooks.New(api.URL, 5*time.Second, logger)
	nav := service.NewNavStack(emitter)
	session := service.NewSessionService(prefs, catalog, emitter, nav, logger, 0)

	s := New(Deps{
		Session: session,
		Shelves: service.NewShelfController(session, catalog, search, prefs, emitter, nav, logger, 10*time.Millisecond),
		Detail:  service.NewDetailController(session, catalog, emitter, nav, logger),
		Nav:     nav,
		Logger:  logger,
	})
	t.Cleanup(s.Close)
	return s, fake
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func signIn(t *testing.T, s *Server) {
	t.Helper()
	res, err := s.handleSignInWithLink(context.Background(), call(map[string]any{"url": "epilogue://verify/abc123"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
}

func TestSignInWithLink(t *testing.T) {
	s, _ := newTestServer(t)
	signIn(t, s)

	res, err := s.handleSessionStatus(context.Background(), call(nil))
	require.NoError(t, err)
	var info service.SessionInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &info))
	assert.True(t, info.SignedIn)
	assert.Equal(t, "manton", info.Username)
	assert.Equal(t, "Manton", info.BlogName)

	state := s.shelves.State()
	assert.Len(t, state.Shelves, 2, "home is loaded after signing in")
}

func TestSignInWithLink_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSignInWithLink(ctx, call(map[string]any{"url": "epilogue://verify/bad"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Token has expired.")

	res, err = s.handleSignInWithLink(ctx, call(map[string]any{"url": "epilogue://verify/"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = s.handleSignInWithLink(ctx, call(nil))
	assert.Error(t, err)
}

func TestOpenHome_SignedOut(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleOpenHome(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, service.ScreenSignIn, s.nav.Current().Screen)
}

func TestSearchShowAndAdd(t *testing.T) {
	s, fake := newTestServer(t)
	ctx := context.Background()
	signIn(t, s)

	res, err := s.handleOpenHome(ctx, call(nil))
	require.NoError(t, err)
	var home service.HomeState
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &home))
	require.Len(t, home.Books, 1)
	assert.Equal(t, "https://c/dune.jpg", home.Books[0].ImageURL)

	res, err = s.handleSubmitSearch(ctx, call(map[string]any{"text": "hobbit"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &home))
	assert.True(t, home.ShowingSearch)
	require.Len(t, home.Books, 1)
	assert.Equal(t, "hob", home.Books[0].ID)

	res, err = s.handleShowBook(ctx, call(map[string]any{"bookId": "hob"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, service.ScreenDetails, s.nav.Current().Screen)

	res, err = s.handleAddBookToBookshelf(ctx, call(map[string]any{"bookshelfId": "2"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "The Hobbit")
	assert.Equal(t, service.ScreenHome, s.nav.Current().Screen)

	fake.mu.Lock()
	assert.Equal(t, []string{"2:9780547928227"}, fake.added)
	fake.mu.Unlock()
}

func TestSubmitSearch_EmptyTextReloadsShelfOnce(t *testing.T) {
	s, fake := newTestServer(t)
	ctx := context.Background()
	signIn(t, s)

	_, err := s.handleSubmitSearch(ctx, call(map[string]any{"text": "hobbit"}))
	require.NoError(t, err)
	before := fake.shelfLoads()

	res, err := s.handleSubmitSearch(ctx, call(map[string]any{"text": ""}))
	require.NoError(t, err)
	var home service.HomeState
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &home))
	assert.False(t, home.ShowingSearch)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before+1, fake.shelfLoads())
}

func TestSelectBookshelf(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	signIn(t, s)

	res, err := s.handleSelectBookshelf(ctx, call(map[string]any{"bookshelfId": "2"}))
	require.NoError(t, err)
	var home service.HomeState
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &home))
	assert.Empty(t, home.Books)
	assert.Equal(t, "Want to read", home.CurrentShelf.Title)
}

func TestGetBookDetails_NothingOpen(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleGetBookDetails(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSignOut_NeedsConfirm(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	signIn(t, s)

	res, err := s.handleSignOut(ctx, call(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "confirm=true")
	assert.True(t, s.session.SignedIn(ctx))

	_, err = s.handleSignOut(ctx, call(map[string]any{"confirm": true}))
	require.NoError(t, err)
	assert.False(t, s.session.SignedIn(ctx))
	assert.Equal(t, service.ScreenSignIn, s.nav.Current().Screen)
}

func TestRemoveBook(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleRemoveBook(context.Background(), call(map[string]any{"bookId": "11"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "not supported")
}

func TestPromptsAndResources(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	var preq mcp.GetPromptRequest
	preq.Params.Arguments = map[string]string{"query": "dune"}
	prompt, err := s.handleAddBookPrompt(ctx, preq)
	require.NoError(t, err)
	require.Len(t, prompt.Messages, 1)
	assert.Contains(t, prompt.Messages[0].Content.(mcp.TextContent).Text, "current bookshelf")

	contents, err := s.handleSessionResource(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"signedIn": false`)
}
