package service

import (
	"context"
	"sync"
)

// Screen names a destination in the navigation stack.
type Screen string

const (
	ScreenHome    Screen = "home"
	ScreenDetails Screen = "details"
	ScreenSignIn  Screen = "signin"
)

// Navigator moves between screens. Controllers only push and pop; rendering is up to the frontend.
type Navigator interface {
	Navigate(ctx context.Context, screen Screen, params any)
	Back(ctx context.Context)
	Current() NavEntry
}

// NavEntry is one screen on the stack.
type NavEntry struct {
	Screen Screen `json:"screen"`
	Params any    `json:"params,omitempty"`
}

// NavStack is the in-process navigation stack. It starts on the home screen.
type NavStack struct {
	mu      sync.Mutex
	stack   []NavEntry
	emitter EventEmitter
}

func NewNavStack(emitter EventEmitter) *NavStack {
	return &NavStack{
		stack:   []NavEntry{{Screen: ScreenHome}},
		emitter: emitter,
	}
}

// Navigate pops back to screen if it is already on the stack, otherwise pushes it.
func (n *NavStack) Navigate(ctx context.Context, screen Screen, params any) {
	n.mu.Lock()
	entry := NavEntry{Screen: screen, Params: params}
	idx := -1
	for i := len(n.stack) - 1; i >= 0; i-- {
		if n.stack[i].Screen == screen {
			idx = i
			break
		}
	}
	if idx >= 0 {
		n.stack = append(n.stack[:idx], entry)
	} else {
		n.stack = append(n.stack, entry)
	}
	n.mu.Unlock()

	n.emitter.Emit(ctx, EventNavigate, entry)
}

// Back pops the top screen. The root screen is never popped.
func (n *NavStack) Back(ctx context.Context) {
	n.mu.Lock()
	if len(n.stack) > 1 {
		n.stack = n.stack[:len(n.stack)-1]
	}
	top := n.stack[len(n.stack)-1]
	n.mu.Unlock()

	n.emitter.Emit(ctx, EventNavigateBack, top)
}

// Current returns the top of the stack.
func (n *NavStack) Current() NavEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}

// Entries returns a copy of the stack, root first.
func (n *NavStack) Entries() []NavEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NavEntry, len(n.stack))
	copy(out, n.stack)
	return out
}
