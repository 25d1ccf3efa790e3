// Package actionctx scopes side-effect switches to a context.Context.
//
// A Scope is attached to a context and stays in effect for every context
// derived from it until Dispose is called. There is no process-wide flag:
// two requests running concurrently never see each other's scopes.
package actionctx

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scope disables side effects while it is attached and not disposed.
type Scope struct {
	suppressCI      bool
	suppressStaging bool

	once     sync.Once
	disposed atomic.Bool
	disposes atomic.Int32
}

// Option configures a Scope.
type Option func(*Scope)

// WithoutCISerialization disables writes to the continuous integration repository.
func WithoutCISerialization() Option {
	return func(s *Scope) { s.suppressCI = true }
}

// WithoutStagingTasks disables staging task logging.
func WithoutStagingTasks() Option {
	return func(s *Scope) { s.suppressStaging = true }
}

// NewScope returns an active scope.
func NewScope(opts ...Option) *Scope {
	s := &Scope{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Attach returns a child of ctx carrying the scope on top of any scopes
// already attached.
func (s *Scope) Attach(ctx context.Context) context.Context {
	if s == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parent := scopes(ctx)
	chain := make([]*Scope, 0, len(parent)+1)
	chain = append(chain, parent...)
	chain = append(chain, s)
	return context.WithValue(ctx, scopesKey{}, chain)
}

// Dispose ends the scope. Only the first call has an effect.
func (s *Scope) Dispose() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.disposed.Store(true)
		s.disposes.Add(1)
	})
}

// Disposed reports whether Dispose has run.
func (s *Scope) Disposed() bool {
	return s != nil && s.disposed.Load()
}

// DisposeCount reports how many times the scope was effectively disposed,
// which is zero or one.
func (s *Scope) DisposeCount() int {
	if s == nil {
		return 0
	}
	return int(s.disposes.Load())
}

// CISerializationAllowed reports whether repository writes may run for ctx.
func CISerializationAllowed(ctx context.Context) bool {
	for _, s := range scopes(ctx) {
		if s.suppressCI && !s.Disposed() {
			return false
		}
	}
	return true
}

// StagingAllowed reports whether staging tasks may be logged for ctx.
func StagingAllowed(ctx context.Context) bool {
	for _, s := range scopes(ctx) {
		if s.suppressStaging && !s.Disposed() {
			return false
		}
	}
	return true
}

type scopesKey struct{}

func scopes(ctx context.Context) []*Scope {
	if ctx == nil {
		return nil
	}
	chain, _ := ctx.Value(scopesKey{}).([]*Scope)
	return chain
}
