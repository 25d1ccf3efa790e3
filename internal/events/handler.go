// Package events runs document lifecycle handlers around a mutation.
//
// Every invocation follows the same order: before handlers, the commit
// function, after handlers, then the callbacks registered with
// CallWhenFinished. Callbacks registered with CallOnDispose run last, once,
// whether the invocation succeeded, failed or panicked.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-cms-ci/internal/actionctx"
)

// Args is implemented by every event argument type through an embedded Lifecycle.
type Args interface {
	lifecycle() *Lifecycle
}

// Lifecycle carries the per-invocation continuations of an event.
type Lifecycle struct {
	mu        sync.Mutex
	ctx       context.Context
	finished  []func(context.Context) error
	disposers []func()
	disposed  bool
}

func (l *Lifecycle) lifecycle() *Lifecycle { return l }

// Context is the context the mutation runs under. Scopes added with
// UseScope are attached to it.
func (l *Lifecycle) Context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

// UseScope attaches scope to the remaining phases of the invocation:
// the rest of the before handlers, the commit and the after handlers.
// Finished callbacks run on the caller context and do not see it.
func (l *Lifecycle) UseScope(scope *actionctx.Scope) {
	if scope == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	base := l.ctx
	if base == nil {
		base = context.Background()
	}
	l.ctx = scope.Attach(base)
}

// CallWhenFinished queues fn to run after the after handlers succeed.
func (l *Lifecycle) CallWhenFinished(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.finished = append(l.finished, fn)
	l.mu.Unlock()
}

// CallOnDispose queues fn to run when the invocation ends, in reverse
// registration order.
func (l *Lifecycle) CallOnDispose(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.disposers = append(l.disposers, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) begin(ctx context.Context) {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()
}

func (l *Lifecycle) runFinished(ctx context.Context) error {
	l.mu.Lock()
	queued := l.finished
	l.finished = nil
	l.mu.Unlock()

	for _, fn := range queued {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	queued := l.disposers
	l.disposers = nil
	l.mu.Unlock()

	for i := len(queued) - 1; i >= 0; i-- {
		queued[i]()
	}
}

// HandlerFunc reacts to one event.
type HandlerFunc[T Args] func(ctx context.Context, args T) error

// Handler holds the ordered subscribers of one event kind.
type Handler[T Args] struct {
	name   string
	mu     sync.RWMutex
	before []HandlerFunc[T]
	after  []HandlerFunc[T]
}

// NewHandler returns an empty handler named for error messages.
func NewHandler[T Args](name string) *Handler[T] {
	return &Handler[T]{name: name}
}

// Name returns the event name.
func (h *Handler[T]) Name() string { return h.name }

// Before subscribes fn to run ahead of the commit.
func (h *Handler[T]) Before(fn HandlerFunc[T]) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.before = append(h.before, fn)
	h.mu.Unlock()
}

// After subscribes fn to run once the commit succeeded.
func (h *Handler[T]) After(fn HandlerFunc[T]) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.after = append(h.after, fn)
	h.mu.Unlock()
}

// Invoke runs the event around commit. The first error stops the sequence
// and is returned; dispose callbacks run regardless.
func (h *Handler[T]) Invoke(ctx context.Context, args T, commit func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := args.lifecycle()
	if lc == nil {
		return errors.New("events: args without lifecycle")
	}
	lc.begin(ctx)
	defer lc.dispose()

	h.mu.RLock()
	before := append([]HandlerFunc[T](nil), h.before...)
	after := append([]HandlerFunc[T](nil), h.after...)
	h.mu.RUnlock()

	for _, fn := range before {
		if err := fn(lc.Context(), args); err != nil {
			return fmt.Errorf("events: %s before: %w", h.name, err)
		}
	}
	if commit != nil {
		if err := commit(lc.Context()); err != nil {
			return err
		}
	}
	for _, fn := range after {
		if err := fn(lc.Context(), args); err != nil {
			return fmt.Errorf("events: %s after: %w", h.name, err)
		}
	}
	if err := lc.runFinished(ctx); err != nil {
		return fmt.Errorf("events: %s finished: %w", h.name, err)
	}
	return nil
}
