package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"epilogue/internal/service"
)

// sessionWatcher polls the preference store for changes made by another
// process (e.g. `epilogue mcp` signing in or out) and brings the window in line.
type sessionWatcher struct {
	ctx     context.Context
	core    *core
	emitter service.EventEmitter
	logger  *zap.Logger
	every   time.Duration

	mu          sync.Mutex
	fingerprint string
	signedIn    bool
	stopCh      chan struct{}
}

func newSessionWatcher(ctx context.Context, c *core, emitter service.EventEmitter, logger *zap.Logger) *sessionWatcher {
	return &sessionWatcher{
		ctx:     ctx,
		core:    c,
		emitter: emitter,
		logger:  logger.Named("session-watcher"),
		every:   2 * time.Second,
	}
}

// Start records the current state and begins polling. Should be called once on app startup.
func (w *sessionWatcher) Start() {
	w.Sync()
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	w.mu.Unlock()
	go w.pollLoop()
}

// Sync takes the current store as the baseline. Called after this process
// changes the session itself.
func (w *sessionWatcher) Sync() {
	fp, err := w.core.prefs.Fingerprint(w.ctx)
	if err != nil {
		w.logger.Debug("fingerprint", zap.Error(err))
	}
	signedIn := w.core.session.SignedIn(w.ctx)

	w.mu.Lock()
	w.fingerprint = fp
	w.signedIn = signedIn
	w.mu.Unlock()
}

// Stop terminates the polling loop.
func (w *sessionWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *sessionWatcher) pollLoop() {
	w.mu.Lock()
	stop := w.stopCh
	w.mu.Unlock()

	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

// check compares the store with the last poll and reacts to a session that
// appeared or went away.
func (w *sessionWatcher) check() {
	fp, err := w.core.prefs.Fingerprint(w.ctx)
	if err != nil {
		w.logger.Debug("fingerprint", zap.Error(err))
		return
	}

	w.mu.Lock()
	if fp == w.fingerprint {
		w.mu.Unlock()
		return
	}
	w.fingerprint = fp
	was := w.signedIn
	now := w.core.session.SignedIn(w.ctx)
	w.signedIn = now
	w.mu.Unlock()

	switch {
	case now && !was:
		sess, err := w.core.session.Current(w.ctx)
		if err != nil {
			w.logger.Warn("load session", zap.Error(err))
			return
		}
		w.emitter.Emit(w.ctx, service.EventSignedIn, service.SessionView(sess))
		if w.core.nav.Current().Screen == service.ScreenSignIn {
			w.core.nav.Back(w.ctx)
		}
		if err := w.core.shelves.Focus(w.ctx); err != nil {
			w.logger.Warn("reload after external sign-in", zap.Error(err))
		}
	case was && !now:
		w.core.shelves.Close()
		w.emitter.Emit(w.ctx, service.EventSignedOut, nil)
		w.core.nav.Navigate(w.ctx, service.ScreenSignIn, nil)
	}
}
