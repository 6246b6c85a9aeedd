package scheduling

import (
	"context"
	"net/http"
	"sync"

	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// ErrNothingStaged is returned by Confirm when the gate is idle.
var ErrNothingStaged = appErrors.New("NOTHING_STAGED", http.StatusConflict, "no action awaiting confirmation")

// CommitFunc performs the gated action.
type CommitFunc[T any] func(ctx context.Context, payload T) error

// Gate holds at most one action awaiting explicit confirmation.
// Staging replaces whatever was staged before.
type Gate[T any] struct {
	mu      sync.Mutex
	payload T
	staged  bool
}

// NewGate returns an idle gate.
func NewGate[T any]() *Gate[T] {
	return &Gate[T]{}
}

// Stage moves the gate to Staged(payload).
func (g *Gate[T]) Stage(payload T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payload = payload
	g.staged = true
}

// Staged returns the staged payload, if any.
func (g *Gate[T]) Staged() (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payload, g.staged
}

// Cancel discards the staged payload without committing it.
func (g *Gate[T]) Cancel() bool {
	_, ok := g.take()
	return ok
}

// Confirm commits the staged payload. The gate is idle again before commit
// runs, whatever commit returns.
func (g *Gate[T]) Confirm(ctx context.Context, commit CommitFunc[T]) error {
	payload, ok := g.take()
	if !ok {
		return ErrNothingStaged
	}
	return commit(ctx, payload)
}

func (g *Gate[T]) take() (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var zero T
	payload, ok := g.payload, g.staged
	g.payload = zero
	g.staged = false
	return payload, ok
}
