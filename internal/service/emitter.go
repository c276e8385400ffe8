package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting events to the frontend.
// The desktop App delegates to wailsRuntime.EventsEmit; the MCP server
// runs with an emitter that only logs.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names shared by every frontend.
const (
	EventAlert        = "app:alert"
	EventSignedIn     = "session:signed-in"
	EventSignedOut    = "session:signed-out"
	EventHomeState    = "home:state"
	EventDetailState  = "detail:state"
	EventNavigate     = "nav:navigate"
	EventNavigateBack = "nav:back"
)

// Alert is the payload of an app:alert event.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded payloads for one event name, oldest first.
func (m *MockEmitter) Named(event string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e.Data)
		}
	}
	return out
}

// Alerts returns every recorded app:alert payload.
func (m *MockEmitter) Alerts() []Alert {
	var out []Alert
	for _, d := range m.Named(EventAlert) {
		if a, ok := d.(Alert); ok {
			out = append(out, a)
		}
	}
	return out
}
