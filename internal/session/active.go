package session

import (
	"context"
	"sync"
)

// Target identifies the conversation being viewed: a contact's user id or a group id.
type Target struct {
	ID      string
	IsGroup bool
	Name    string
}

// Active is the chat currently open. Every switch bumps the generation and
// cancels work started for the previous target.
type Active struct {
	mu     sync.Mutex
	target *Target
	gen    uint64
	cancel context.CancelFunc
}

// Switch makes t current and returns a context bound to it plus its generation.
func (a *Active) Switch(parent context.Context, t Target) (context.Context, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	a.target = &t
	a.gen++
	a.cancel = cancel
	return ctx, a.gen
}

// Close drops the current target.
func (a *Active) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.target = nil
	a.gen++
}

// Current returns the open target and its generation.
func (a *Active) Current() (Target, uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.target == nil {
		return Target{}, a.gen, false
	}
	return *a.target, a.gen, true
}

// IsCurrent reports whether gen is still the open generation. Results
// computed for an older one must be discarded.
func (a *Active) IsCurrent(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target != nil && a.gen == gen
}
