package playlist

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSuperseded is returned by a task that was replaced by a newer one
// before it finished. Its results must be discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest runs tasks so that only the most recently submitted one can
// deliver a result. Submitting a task cancels the one before it.
type Latest[T any] struct {
	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// Do runs fn, cancelling any task still running from an earlier Do.
// If another Do starts before fn returns, Do returns ErrSuperseded.
func (l *Latest[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	id := uuid.NewString()
	taskCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.current = id
	l.cancel = cancel
	l.mu.Unlock()

	res, err := fn(taskCtx)

	l.mu.Lock()
	superseded := l.current != id
	if !superseded {
		l.current = ""
		l.cancel = nil
	}
	l.mu.Unlock()
	cancel()

	if superseded {
		var zero T
		return zero, ErrSuperseded
	}
	return res, err
}
