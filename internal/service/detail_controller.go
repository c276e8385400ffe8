package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"epilogue/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Detail Controller: one book and the shelves it can go on
// ─────────────────────────────────────────────────────────────

// ErrNoBookOpen is returned by AddToShelf before Open was called.
var ErrNoBookOpen = errors.New("no book is open")

type DetailState struct {
	Book         domain.Book        `json:"book"`
	Shelves      []domain.Bookshelf `json:"shelves"`
	CurrentShelf *domain.Bookshelf  `json:"currentShelf,omitempty"`
	Adding       bool               `json:"adding"`
}

type DetailController struct {
	session *SessionService
	catalog Catalog
	emitter EventEmitter
	nav     Navigator
	logger  *zap.Logger
	guard   requestGuard

	mu    sync.Mutex
	state DetailState
	open  bool
}

func NewDetailController(
	session *SessionService,
	catalog Catalog,
	emitter EventEmitter,
	nav Navigator,
	logger *zap.Logger,
) *DetailController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailController{
		session: session,
		catalog: catalog,
		emitter: emitter,
		nav:     nav,
		logger:  logger.Named("detail"),
	}
}

// Open shows a book. Any add still in flight for the previous book is cancelled.
func (c *DetailController) Open(ctx context.Context, params DetailParams) {
	c.guard.CancelAll()

	c.mu.Lock()
	c.state = DetailState{
		Book:    params.Book,
		Shelves: append([]domain.Bookshelf(nil), params.Shelves...),
	}
	if params.CurrentShelf != nil {
		shelf := *params.CurrentShelf
		c.state.CurrentShelf = &shelf
	}
	c.open = true
	c.mu.Unlock()

	c.emitState(ctx)
}

func (c *DetailController) State() DetailState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Shelves = append([]domain.Bookshelf{}, c.state.Shelves...)
	if c.state.CurrentShelf != nil {
		shelf := *c.state.CurrentShelf
		s.CurrentShelf = &shelf
	}
	return s
}

// AddToShelf adds the open book to shelfID and goes back on success.
// On failure the screen stays open so the user can try again.
func (c *DetailController) AddToShelf(ctx context.Context, shelfID string) error {
	token, ok, err := c.session.RequireToken(ctx)
	if err != nil || !ok {
		return err
	}

	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrNoBookOpen
	}
	book := c.state.Book
	c.state.Adding = true
	c.mu.Unlock()
	c.emitState(ctx)

	req := c.guard.Begin(ctx, keyAdd)
	defer req.Done()

	err = c.catalog.AddBook(req.Context(), token, book, shelfID)

	c.mu.Lock()
	current := req.Current()
	if current {
		c.state.Adding = false
	}
	c.mu.Unlock()

	if !current {
		return nil
	}
	c.emitState(ctx)

	if err != nil {
		c.logger.Error("add book",
			zap.String("isbn", book.ISBN),
			zap.String("shelf", shelfID),
			zap.Error(err))
		c.emitter.Emit(ctx, EventAlert, Alert{
			Title:   "Couldn't add book",
			Message: "micro.blog didn't accept the book. Please try again.",
		})
		return err
	}

	c.logger.Info("book added", zap.String("isbn", book.ISBN), zap.String("shelf", shelfID))
	c.nav.Back(ctx)
	return nil
}

// Close cancels an add in flight.
func (c *DetailController) Close() {
	c.guard.CancelAll()
}

func (c *DetailController) emitState(ctx context.Context) {
	c.emitter.Emit(ctx, EventDetailState, c.State())
}
