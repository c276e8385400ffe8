package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"epilogue/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Shelf Controller: the home screen
// ─────────────────────────────────────────────────────────────
//
// Owns the book list, the bookshelf menu and the search field. The book list
// shows either the current shelf or search results; both feed the same
// request key so a newer load always wins.

// Catalog is the micro.blog bookshelves API.
type Catalog interface {
	ListBookshelves(ctx context.Context, token string) ([]domain.Bookshelf, error)
	ListBooks(ctx context.Context, token, shelfID string) ([]domain.Book, error)
	AddBook(ctx context.Context, token string, book domain.Book, shelfID string) error
}

// Searcher looks books up in an external catalog.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Book, error)
}

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

const (
	keyBooks   = "books"
	keyShelves = "shelves"
	keyAdd     = "add"
)

const msgLoadFailed = "Couldn't load books. Check your connection and try again."

// HomeState is a snapshot of the home screen.
type HomeState struct {
	Books         []domain.Book      `json:"books"`
	Shelves       []domain.Bookshelf `json:"shelves"`
	CurrentShelf  *domain.Bookshelf  `json:"currentShelf,omitempty"`
	SearchText    string             `json:"searchText"`
	ShowingSearch bool               `json:"showingSearch"`
	BooksPhase    Phase              `json:"booksPhase"`
	ShelvesPhase  Phase              `json:"shelvesPhase"`
}

// DetailParams is what the detail screen is opened with.
type DetailParams struct {
	Book         domain.Book        `json:"book"`
	Shelves      []domain.Bookshelf `json:"shelves"`
	CurrentShelf *domain.Bookshelf  `json:"currentShelf,omitempty"`
}

type ShelfController struct {
	session *SessionService
	catalog Catalog
	search  Searcher
	prefs   domain.PreferenceStore
	emitter EventEmitter
	nav     Navigator
	logger  *zap.Logger

	guard  requestGuard
	settle func(func())

	mu    sync.Mutex
	state HomeState
	// Phases to fall back to when a load fails or is cancelled: Idle until
	// the first success, Ready after.
	settledBooks   Phase
	settledShelves Phase
}

// NewShelfController creates the home screen controller. settleDelay is how
// long a cleared search field must stay empty before the shelf is reloaded.
func NewShelfController(
	session *SessionService,
	catalog Catalog,
	search Searcher,
	prefs domain.PreferenceStore,
	emitter EventEmitter,
	nav Navigator,
	logger *zap.Logger,
	settleDelay time.Duration,
) *ShelfController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShelfController{
		session: session,
		catalog: catalog,
		search:  search,
		prefs:   prefs,
		emitter: emitter,
		nav:     nav,
		logger:  logger.Named("shelves"),
		settle:         debounce.New(settleDelay),
		settledBooks:   PhaseIdle,
		settledShelves: PhaseIdle,
		state: HomeState{
			Books:        []domain.Book{},
			Shelves:      []domain.Bookshelf{},
			BooksPhase:   PhaseIdle,
			ShelvesPhase: PhaseIdle,
		},
	}
}

// State returns a copy of the current home screen state.
func (c *ShelfController) State() HomeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ShelfController) snapshotLocked() HomeState {
	s := c.state
	s.Books = append([]domain.Book(nil), c.state.Books...)
	s.Shelves = append([]domain.Bookshelf(nil), c.state.Shelves...)
	if c.state.CurrentShelf != nil {
		shelf := *c.state.CurrentShelf
		s.CurrentShelf = &shelf
	}
	if s.Books == nil {
		s.Books = []domain.Book{}
	}
	if s.Shelves == nil {
		s.Shelves = []domain.Bookshelf{}
	}
	return s
}

// ── Screen events ──────────────────────────────────────────

// Focus runs whenever the home screen becomes visible.
func (c *ShelfController) Focus(ctx context.Context) error {
	token, ok, err := c.session.RequireToken(ctx)
	if err != nil || !ok {
		return err
	}

	var search string
	found, err := c.prefs.Get(ctx, domain.KeyCurrentSearch, &search)
	if err != nil {
		c.logger.Warn("read current search", zap.Error(err))
	}
	if found && search != "" {
		c.mu.Lock()
		c.state.SearchText = search
		c.mu.Unlock()
		if err := c.runSearch(ctx, search); err != nil {
			return finish(err)
		}
		shelves, err := c.loadShelves(ctx, token, false)
		if err != nil {
			return finish(err)
		}
		// The results stay; only the menu title follows the saved shelf.
		current, ok := c.reconcileShelf(ctx, shelves)
		c.mu.Lock()
		if ok {
			c.state.CurrentShelf = &current
		} else {
			c.state.CurrentShelf = nil
		}
		c.mu.Unlock()
		c.emitState(ctx)
		return nil
	}
	return finish(c.loadShelvesAndBooks(ctx, token))
}

// SelectShelf shows the books on shelf id and makes it the current shelf.
func (c *ShelfController) SelectShelf(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	token, ok, err := c.session.RequireToken(ctx)
	if err != nil || !ok {
		return err
	}
	if err := c.loadBooks(ctx, token, id); err != nil {
		return finish(err)
	}

	c.mu.Lock()
	shelf, known := domain.FindShelf(c.state.Shelves, id)
	if known {
		c.state.CurrentShelf = &shelf
	}
	c.mu.Unlock()

	if known {
		if err := c.prefs.Set(ctx, domain.KeyCurrentBookshelf, shelf); err != nil {
			c.logger.Warn("save current bookshelf", zap.Error(err))
		}
	}
	c.emitState(ctx)
	return nil
}

// ChangeSearchText records what is typed in the search field. Clearing the
// field reloads the current shelf once it has stayed empty for the settle delay.
func (c *ShelfController) ChangeSearchText(text string) {
	c.mu.Lock()
	c.state.SearchText = text
	c.mu.Unlock()

	if text != "" {
		return
	}
	c.settle(func() {
		c.mu.Lock()
		still := c.state.SearchText == ""
		c.mu.Unlock()
		if !still {
			return
		}
		ctx := context.Background()
		if err := c.clearSearch(ctx); err != nil && !isCancel(err) {
			c.logger.Debug("reload after clearing search", zap.Error(err))
		}
	})
}

// SubmitSearch searches for the current text, or goes back to the shelf when it is empty.
func (c *ShelfController) SubmitSearch(ctx context.Context) error {
	// Submitting supersedes a reload still waiting on the settle delay.
	c.settle(func() {})

	c.mu.Lock()
	text := c.state.SearchText
	c.mu.Unlock()

	if text == "" {
		return finish(c.clearSearch(ctx))
	}
	if err := c.prefs.Set(ctx, domain.KeyCurrentSearch, text); err != nil {
		c.logger.Warn("save current search", zap.Error(err))
	}
	return finish(c.runSearch(ctx, text))
}

// SelectBook opens the detail screen for a book in the current list.
func (c *ShelfController) SelectBook(ctx context.Context, id string) error {
	c.mu.Lock()
	var (
		book  domain.Book
		found bool
	)
	for _, b := range c.state.Books {
		if b.ID == id {
			book, found = b, true
			break
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !found {
		return fmt.Errorf("book %q is not in the list", id)
	}
	c.nav.Navigate(ctx, ScreenDetails, DetailParams{
		Book:         book,
		Shelves:      snap.Shelves,
		CurrentShelf: snap.CurrentShelf,
	})
	return nil
}

// RemoveBook is the swipe-to-remove action. Removing from a shelf is not supported yet.
func (c *ShelfController) RemoveBook(_ context.Context, id string) {
	c.logger.Debug("remove book ignored", zap.String("id", id))
}

// RefreshShelves reloads the bookshelf menu without touching the book list.
// Failures are logged but not alerted.
func (c *ShelfController) RefreshShelves(ctx context.Context) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	_, err = c.loadShelves(ctx, token, true)
	return finish(err)
}

// Close cancels every in-flight request and any pending search reload.
func (c *ShelfController) Close() {
	c.settle(func() {})
	c.guard.CancelAll()

	c.mu.Lock()
	c.state.BooksPhase = c.settledBooks
	c.state.ShelvesPhase = c.settledShelves
	c.mu.Unlock()
}

// ── Loading ────────────────────────────────────────────────

func (c *ShelfController) loadShelvesAndBooks(ctx context.Context, token string) error {
	shelves, err := c.loadShelves(ctx, token, false)
	if err != nil {
		return err
	}

	current, ok := c.reconcileShelf(ctx, shelves)
	if !ok {
		c.guard.Cancel(keyBooks)
		c.mu.Lock()
		c.state.CurrentShelf = nil
		c.state.Books = []domain.Book{}
		c.state.ShowingSearch = false
		c.state.BooksPhase = PhaseReady
		c.settledBooks = PhaseReady
		c.mu.Unlock()
		c.emitState(ctx)
		return nil
	}

	c.mu.Lock()
	c.state.CurrentShelf = &current
	c.mu.Unlock()
	return c.loadBooks(ctx, token, current.ID)
}

// reconcileShelf keeps the saved shelf if it still exists, else falls back to
// the first one. With no shelves the saved pointer is removed.
func (c *ShelfController) reconcileShelf(ctx context.Context, shelves []domain.Bookshelf) (domain.Bookshelf, bool) {
	if len(shelves) == 0 {
		if err := c.prefs.Remove(ctx, domain.KeyCurrentBookshelf); err != nil {
			c.logger.Warn("remove current bookshelf", zap.Error(err))
		}
		return domain.Bookshelf{}, false
	}

	current := shelves[0]
	var saved domain.Bookshelf
	found, err := c.prefs.Get(ctx, domain.KeyCurrentBookshelf, &saved)
	if err != nil {
		c.logger.Warn("read current bookshelf", zap.Error(err))
	}
	if found {
		if s, ok := domain.FindShelf(shelves, saved.ID); ok {
			current = s
		}
	}
	if err := c.prefs.Set(ctx, domain.KeyCurrentBookshelf, current); err != nil {
		c.logger.Warn("save current bookshelf", zap.Error(err))
	}
	return current, true
}

// loadShelves refreshes the bookshelf menu. quiet failures are logged without an alert.
func (c *ShelfController) loadShelves(ctx context.Context, token string, quiet bool) ([]domain.Bookshelf, error) {
	req := c.guard.Begin(ctx, keyShelves)
	defer req.Done()

	c.mu.Lock()
	c.state.ShelvesPhase = PhaseLoading
	c.mu.Unlock()

	shelves, err := c.catalog.ListBookshelves(req.Context(), token)

	c.mu.Lock()
	if !req.Current() {
		c.settleLocked(keyShelves)
		c.mu.Unlock()
		return nil, errSuperseded
	}
	if err != nil {
		c.state.ShelvesPhase = c.settledShelves
		c.mu.Unlock()
		if quiet {
			c.logger.Warn("refresh bookshelves", zap.Error(err))
			return nil, err
		}
		c.fail(ctx, "load bookshelves", err)
		return nil, err
	}
	c.state.Shelves = shelves
	c.state.ShelvesPhase = PhaseReady
	c.settledShelves = PhaseReady
	if c.state.CurrentShelf != nil {
		if s, ok := domain.FindShelf(shelves, c.state.CurrentShelf.ID); ok {
			c.state.CurrentShelf = &s
		}
	}
	c.mu.Unlock()

	c.emitState(ctx)
	return shelves, nil
}

// loadBooks leaves the list alone when there is no shelf to load.
func (c *ShelfController) loadBooks(ctx context.Context, token, shelfID string) error {
	if shelfID == "" {
		return nil
	}
	return c.fillBooks(ctx, "load books", false, func(ctx context.Context) ([]domain.Book, error) {
		return c.catalog.ListBooks(ctx, token, shelfID)
	})
}

func (c *ShelfController) runSearch(ctx context.Context, text string) error {
	return c.fillBooks(ctx, "search", true, func(ctx context.Context) ([]domain.Book, error) {
		return c.search.Search(ctx, text)
	})
}

// fillBooks replaces the book list with the result of fetch, unless a newer
// book request started in the meantime.
func (c *ShelfController) fillBooks(ctx context.Context, what string, search bool, fetch func(context.Context) ([]domain.Book, error)) error {
	req := c.guard.Begin(ctx, keyBooks)
	defer req.Done()

	c.mu.Lock()
	c.state.BooksPhase = PhaseLoading
	c.mu.Unlock()
	c.emitState(ctx)

	books, err := fetch(req.Context())

	c.mu.Lock()
	if !req.Current() {
		c.settleLocked(keyBooks)
		c.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		c.state.BooksPhase = c.settledBooks
		c.mu.Unlock()
		c.fail(ctx, what, err)
		return err
	}
	if books == nil {
		books = []domain.Book{}
	}
	c.state.Books = books
	c.state.ShowingSearch = search
	c.state.BooksPhase = PhaseReady
	c.settledBooks = PhaseReady
	c.mu.Unlock()

	c.emitState(ctx)
	return nil
}

func (c *ShelfController) clearSearch(ctx context.Context) error {
	if err := c.prefs.Remove(ctx, domain.KeyCurrentSearch); err != nil {
		c.logger.Warn("remove current search", zap.Error(err))
	}
	token, ok, err := c.session.RequireToken(ctx)
	if err != nil || !ok {
		return err
	}

	c.mu.Lock()
	var shelfID string
	if c.state.CurrentShelf != nil {
		shelfID = c.state.CurrentShelf.ID
	}
	c.mu.Unlock()

	if shelfID == "" {
		var saved domain.Bookshelf
		if found, err := c.prefs.Get(ctx, domain.KeyCurrentBookshelf, &saved); err == nil && found {
			shelfID = saved.ID
		}
	}
	if shelfID == "" {
		return c.loadShelvesAndBooks(ctx, token)
	}
	return c.loadBooks(ctx, token, shelfID)
}

// ── Helpers ────────────────────────────────────────────────

// settleLocked drops a Loading phase left by a cancelled request once no
// other request on key is running. c.mu must be held.
func (c *ShelfController) settleLocked(key string) {
	if c.guard.InFlight(key) {
		return
	}
	switch key {
	case keyBooks:
		c.state.BooksPhase = c.settledBooks
	case keyShelves:
		c.state.ShelvesPhase = c.settledShelves
	}
}

func (c *ShelfController) emitState(ctx context.Context) {
	c.emitter.Emit(ctx, EventHomeState, c.State())
}

// fail logs err and alerts the user, unless the request was cancelled.
func (c *ShelfController) fail(ctx context.Context, what string, err error) {
	if isCancel(err) {
		return
	}
	c.logger.Error(what, zap.Error(err))
	c.emitter.Emit(ctx, EventAlert, Alert{Title: "Error", Message: msgLoadFailed})
	c.emitState(ctx)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, errSuperseded)
}

// finish hides superseded results from callers; they are not failures.
func finish(err error) error {
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}
