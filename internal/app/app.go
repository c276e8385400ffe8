package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/wailsapp/wails/v2/pkg/options"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"epilogue/internal/config"
	"epilogue/internal/deeplink"
	"epilogue/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger

	emitter *wailsEmitter
	core    *core
	inbox   *deeplink.Inbox
	refresh *cron.Cron
	watcher *sessionWatcher

	// Links opened before Startup finished.
	pendingMu sync.Mutex
	pending   []string
}

// New creates a new App.
func New(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		emitter: &wailsEmitter{logger: logger},
	}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	a.emitter.attach(ctx)

	c, err := newCore(a.cfg, a.logger, a.emitter)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open database: %v", err)
		return
	}

	refresh, err := startRefresh(ctx, a.cfg.RefreshSchedule, c.shelves.RefreshShelves, a.logger)
	if err != nil {
		wailsRuntime.LogErrorf(ctx, "Background refresh disabled: %v", err)
	}
	a.refresh = refresh

	a.watcher = newSessionWatcher(ctx, c, a.emitter, a.logger)
	a.watcher.Start()

	a.pendingMu.Lock()
	a.core = c
	pending := a.pending
	a.pending = nil
	a.pendingMu.Unlock()

	for _, link := range pending {
		go a.handleLink(ctx, link)
	}

	// Opened last: links already waiting in the inbox are handled right away.
	inbox, err := deeplink.Open(ctx, a.cfg.InboxDir(), func(ctx context.Context, url string) {
		go a.handleLink(ctx, url)
	}, a.logger)
	if err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to open link inbox: %v", err)
	}
	a.inbox = inbox
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.refresh != nil {
		<-a.refresh.Stop().Done()
	}
	if a.inbox != nil {
		a.inbox.Close()
	}
	if a.core != nil {
		a.core.Close()
	}
	_ = a.logger.Sync()
}

// ── Deep links ─────────────────────────────────────────────

// OpenURL receives a URL opened through the OS (mac.Options.OnUrlOpen).
func (a *App) OpenURL(url string) {
	a.pendingMu.Lock()
	if a.core == nil {
		a.pending = append(a.pending, url)
		a.pendingMu.Unlock()
		return
	}
	a.pendingMu.Unlock()
	go a.handleLink(a.ctx, url)
}

// OnSecondInstance handles a second launch, which carries any URL it was opened with.
func (a *App) OnSecondInstance(data options.SecondInstanceData) {
	for _, arg := range data.Args {
		if strings.Contains(arg, "://") {
			a.OpenURL(arg)
		}
	}
	if a.ctx != nil {
		wailsRuntime.WindowUnminimise(a.ctx)
		wailsRuntime.WindowShow(a.ctx)
	}
}

func (a *App) handleLink(ctx context.Context, url string) {
	if _, ok := service.TokenFromURL(url); !ok {
		a.logger.Debug("ignoring link", zap.String("url", url))
		return
	}
	wailsRuntime.WindowShow(ctx)

	err := a.core.session.HandleURL(ctx, url)
	a.watcher.Sync()
	if err != nil {
		a.logger.Warn("sign-in link", zap.Error(err))
		return
	}
	if err := a.core.shelves.Focus(ctx); err != nil {
		a.logger.Warn("load home after sign-in", zap.Error(err))
	}
}

// ── Session ────────────────────────────────────────────────

// GetSession returns the signed-in account.
func (a *App) GetSession() (service.SessionInfo, error) {
	sess, err := a.core.session.Current(a.ctx)
	if err != nil {
		return service.SessionInfo{}, err
	}
	return service.SessionView(sess), nil
}

// SignOut asks for confirmation, then signs out.
func (a *App) SignOut() error {
	choice, err := wailsRuntime.MessageDialog(a.ctx, wailsRuntime.MessageDialogOptions{
		Type:          wailsRuntime.QuestionDialog,
		Title:         "Sign out of Epilogue?",
		Buttons:       []string{"Cancel", "Sign Out"},
		DefaultButton: "Sign Out",
		CancelButton:  "Cancel",
	})
	if err != nil {
		return fmt.Errorf("confirm sign out: %w", err)
	}
	if choice != "Sign Out" && choice != "Yes" {
		return nil
	}

	a.core.shelves.Close()
	a.core.detail.Close()
	err = a.core.session.SignOut(a.ctx)
	a.watcher.Sync()
	return err
}

// ── Home screen ────────────────────────────────────────────

// FocusHome is called by the frontend whenever the home screen is shown.
func (a *App) FocusHome() error {
	return a.core.shelves.Focus(a.ctx)
}

func (a *App) GetHomeState() service.HomeState {
	return a.core.shelves.State()
}

func (a *App) SelectBookshelf(id string) error {
	return a.core.shelves.SelectShelf(a.ctx, id)
}

func (a *App) ChangeSearchText(text string) {
	a.core.shelves.ChangeSearchText(text)
}

func (a *App) SubmitSearch() error {
	return a.core.shelves.SubmitSearch(a.ctx)
}

// RemoveBook is bound to the swipe-to-remove gesture.
func (a *App) RemoveBook(id string) {
	a.core.shelves.RemoveBook(a.ctx, id)
}

// ── Detail screen ──────────────────────────────────────────

// ShowBook opens the detail screen for a book on the home screen.
func (a *App) ShowBook(id string) (service.DetailState, error) {
	if err := a.core.shelves.SelectBook(a.ctx, id); err != nil {
		return service.DetailState{}, err
	}
	params, ok := a.core.nav.Current().Params.(service.DetailParams)
	if !ok {
		return service.DetailState{}, fmt.Errorf("detail screen opened without a book")
	}
	a.core.detail.Open(a.ctx, params)
	return a.core.detail.State(), nil
}

func (a *App) GetBookDetails() service.DetailState {
	return a.core.detail.State()
}

func (a *App) AddBookToBookshelf(shelfID string) error {
	return a.core.detail.AddToShelf(a.ctx, shelfID)
}

// ── Navigation ─────────────────────────────────────────────

func (a *App) GoBack() {
	if a.core.nav.Current().Screen == service.ScreenDetails {
		a.core.detail.Close()
	}
	a.core.nav.Back(a.ctx)
}

func (a *App) CurrentScreen() service.NavEntry {
	return a.core.nav.Current()
}
