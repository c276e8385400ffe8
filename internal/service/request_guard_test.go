package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"epilogue/internal/service"
)

// ─────────────────────────────────────────────────────────────
// requestGuard tests
// ─────────────────────────────────────────────────────────────

func TestRequestGuard_NewRequestCancelsPrevious(t *testing.T) {
	var g service.ExportedRequestGuard

	first := g.Begin(context.Background(), "books")
	second := g.Begin(context.Background(), "books")
	other := g.Begin(context.Background(), "shelves")

	assert.Error(t, first.Context().Err())
	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.True(t, other.Current())
	assert.NotEqual(t, first.ID(), second.ID())

	first.Done()
	assert.True(t, g.InFlight("books"), "finishing a stale request keeps the newer one")
	second.Done()
	assert.False(t, g.InFlight("books"))
	other.Done()
}

func TestRequestGuard_CancelAll(t *testing.T) {
	var g service.ExportedRequestGuard

	a := g.Begin(context.Background(), "books")
	b := g.Begin(context.Background(), "add")
	g.CancelAll()

	assert.False(t, a.Current())
	assert.False(t, b.Current())
	assert.False(t, g.InFlight("books"))
	a.Done()
	b.Done()
	b.Done()
}

func TestRequestGuard_WaitAll(t *testing.T) {
	var g service.ExportedRequestGuard
	r := g.Begin(context.Background(), "books")

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Done()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, service.EventAlert, service.Alert{Title: "t", Message: "m"})

	assert.Len(t, m.Events, 2)
	assert.Len(t, m.Named("test:event"), 1)
	assert.Equal(t, []service.Alert{{Title: "t", Message: "m"}}, m.Alerts())
}
