package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"epilogue/internal/domain"
	"epilogue/internal/microblog"
	"epilogue/internal/service"
	"epilogue/internal/storage"
)

// ── Fakes ──────────────────────────────────────────────────

type fakeCatalog struct {
	mu        sync.Mutex
	shelves   []domain.Bookshelf
	books     map[string][]domain.Book
	shelfErr  error
	booksErr  error
	addErr    error
	block     chan struct{} // when set, ListBooks waits on it or on ctx
	shelfReqs int
	bookReqs  []string
	added     []addCall
}

type addCall struct {
	token   string
	book    domain.Book
	shelfID string
}

func (f *fakeCatalog) ListBookshelves(_ context.Context, token string) ([]domain.Bookshelf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shelfReqs++
	if f.shelfErr != nil {
		return nil, f.shelfErr
	}
	return append([]domain.Bookshelf(nil), f.shelves...), nil
}

func (f *fakeCatalog) ListBooks(ctx context.Context, token, shelfID string) ([]domain.Book, error) {
	f.mu.Lock()
	f.bookReqs = append(f.bookReqs, shelfID)
	block := f.block
	err := f.booksErr
	books := f.books[shelfID]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (f *fakeCatalog) AddBook(_ context.Context, token string, book domain.Book, shelfID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, addCall{token: token, book: book, shelfID: shelfID})
	return f.addErr
}

func (f *fakeCatalog) bookRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bookReqs...)
}

func (f *fakeCatalog) shelfRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shelfReqs
}

type fakeSearch struct {
	mu      sync.Mutex
	results []domain.Book
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]domain.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func (f *fakeSearch) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeAccount struct {
	verification microblog.Verification
	verifyErr    error
	blogs        []domain.Blog
	blogsErr     error
	blogCalls    int
}

func (f *fakeAccount) VerifyToken(_ context.Context, token string) (microblog.Verification, error) {
	return f.verification, f.verifyErr
}

func (f *fakeAccount) ListDestinations(_ context.Context, token string) ([]domain.Blog, error) {
	f.blogCalls++
	return f.blogs, f.blogsErr
}

// ── Harness ────────────────────────────────────────────────

type harness struct {
	prefs   *storage.PreferenceStore
	emitter *service.MockEmitter
	nav     *service.NavStack
	account *fakeAccount
	catalog *fakeCatalog
	search  *fakeSearch
	session *service.SessionService
	shelves *service.ShelfController
	detail  *service.DetailController
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "epilogue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	h := &harness{
		prefs:   storage.NewPreferenceStore(db),
		emitter: &service.MockEmitter{},
		account: &fakeAccount{},
		catalog: &fakeCatalog{books: map[string][]domain.Book{}},
		search:  &fakeSearch{},
	}
	h.nav = service.NewNavStack(h.emitter)
	h.session = service.NewSessionService(h.prefs, h.account, h.emitter, h.nav, logger, 0)
	h.shelves = service.NewShelfController(h.session, h.catalog, h.search, h.prefs, h.emitter, h.nav, logger, 20*time.Millisecond)
	h.detail = service.NewDetailController(h.session, h.catalog, h.emitter, h.nav, logger)
	t.Cleanup(h.shelves.Close)
	return h
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, h.prefs.Set(context.Background(), domain.KeyAuthToken, "tok"))
}

func (h *harness) pref(t *testing.T, key string, dst any) bool {
	t.Helper()
	found, err := h.prefs.Get(context.Background(), key, dst)
	require.NoError(t, err)
	return found
}

var (
	shelfReading = domain.NewBookshelf("1", "Currently reading", 1)
	shelfWant    = domain.NewBookshelf("2", "Want to read", 3)
	bookDune     = domain.Book{ID: "11", ISBN: "9780441013593", Title: "Dune", ImageURL: "https://covers.example/dune.jpg", Author: "Frank Herbert"}
	bookHobbit   = domain.Book{ID: "12", ISBN: "9780547928227", Title: "The Hobbit", ImageURL: "https://covers.example/hobbit.jpg", Author: "J.R.R. Tolkien"}
)
