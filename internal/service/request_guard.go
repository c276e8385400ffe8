package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ExportedRequestGuard is an exported alias so _test packages can test the guard.
type ExportedRequestGuard = requestGuard

// errSuperseded marks a result that arrived after a newer request on the same key.
var errSuperseded = errors.New("request superseded")

// ─────────────────────────────────────────────────────────────
// requestGuard: one in-flight request per piece of state
// ─────────────────────────────────────────────────────────────

// requestGuard tracks the latest request for each key. Beginning a request
// cancels the previous one on the same key so its result can be dropped.
type requestGuard struct {
	mu       sync.Mutex
	inflight map[string]*guardedRequest
	wg       sync.WaitGroup
}

type guardedRequest struct {
	guard  *requestGuard
	key    string
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Begin starts a request on key derived from parent.
// The caller must call Done on the returned request.
func (g *requestGuard) Begin(parent context.Context, key string) *guardedRequest {
	ctx, cancel := context.WithCancel(parent)
	r := &guardedRequest{guard: g, key: key, id: uuid.NewString(), ctx: ctx, cancel: cancel}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight == nil {
		g.inflight = make(map[string]*guardedRequest)
	}
	if prev, ok := g.inflight[key]; ok {
		prev.cancel()
	}
	g.inflight[key] = r
	g.wg.Add(1)
	return r
}

// Cancel aborts the in-flight request on key, if any.
func (g *requestGuard) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.inflight[key]; ok {
		r.cancel()
		delete(g.inflight, key)
	}
}

// CancelAll aborts every in-flight request.
func (g *requestGuard) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, r := range g.inflight {
		r.cancel()
		delete(g.inflight, key)
	}
}

// InFlight reports whether a request is running on key.
func (g *requestGuard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[key]
	return ok
}

// WaitAll blocks until all started requests are done or ctx is cancelled.
func (g *requestGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (r *guardedRequest) Context() context.Context { return r.ctx }

func (r *guardedRequest) ID() string { return r.id }

// Current reports whether r is still the latest request on its key and has not been cancelled.
func (r *guardedRequest) Current() bool {
	if r.ctx.Err() != nil {
		return false
	}
	r.guard.mu.Lock()
	defer r.guard.mu.Unlock()
	return r.guard.inflight[r.key] == r
}

// Done releases the request. Safe to call more than once.
func (r *guardedRequest) Done() {
	r.once.Do(func() {
		r.guard.mu.Lock()
		if r.guard.inflight[r.key] == r {
			delete(r.guard.inflight, r.key)
		}
		r.guard.mu.Unlock()
		r.cancel()
		r.guard.wg.Done()
	})
}
