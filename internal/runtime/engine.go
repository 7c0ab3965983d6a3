// Package runtime is the dispatch engine: it walks the state machine of a
// model for one recognized event at a time, per session, and runs the actions
// of the transitions it takes.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/index"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/aretw0/colloquy/pkg/session"
)

// DefaultWorkers is the number of turns processed concurrently.
const DefaultWorkers = 8

// UnwindGrace bounds how long Shutdown waits for cancelled turns to finish
// persisting their sessions.
const UnwindGrace = 5 * time.Second

// Result is delivered once a submitted turn completes.
type Result struct {
	Outcome *domain.Outcome
	Err     error
}

// Engine dispatches recognized events to sessions.
//
// Events for one session are processed one at a time in submission order.
// Turns of different sessions run in parallel on a bounded set of workers.
type Engine struct {
	index         atomic.Pointer[index.Index]
	actions       ports.ActionResolver
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	actionTimeout time.Duration
	workers       int

	slots chan struct{}

	mu       sync.Mutex
	lanes    map[string]*lane
	shutdown bool
	pending  sync.WaitGroup

	base   context.Context
	cancel context.CancelFunc
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers bounds the number of turns processed concurrently.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithActionTimeout bounds each action execution. Zero disables the limit.
func WithActionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.actionTimeout = d
	}
}

// NewEngine creates an engine over ix, resolving action names with actions.
func NewEngine(ix *index.Index, actions ports.ActionResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		actions: actions,
		logger:  logging.NewNop(),
		workers: DefaultWorkers,
		lanes:   make(map[string]*lane),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.index.Store(ix)
	e.slots = make(chan struct{}, e.workers)
	e.base, e.cancel = context.WithCancel(context.Background())
	return e
}

// Index returns the index turns are currently evaluated against.
func (e *Engine) Index() *index.Index { return e.index.Load() }

// SetIndex swaps the index. Turns already running finish on the old one.
func (e *Engine) SetIndex(ix *index.Index) { e.index.Store(ix) }

// Submit enqueues a turn and returns a channel receiving its result. ctx
// governs the turn itself and must stay alive until the result arrives.
func (e *Engine) Submit(ctx context.Context, event *domain.RecognizedEvent, sess *session.Session) (<-chan Result, error) {
	if event == nil {
		return nil, &domain.NullReferenceError{Arg: "event"}
	}
	if sess == nil {
		return nil, &domain.NullReferenceError{Arg: "session"}
	}
	if ctx == nil {
		return nil, &domain.NullReferenceError{Arg: "ctx"}
	}

	j := &job{ctx: ctx, event: event, sess: sess, done: make(chan Result, 1)}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil, &domain.IllegalStateError{Op: "submit", Err: domain.ErrAlreadyShutdown}
	}
	e.pending.Add(1)
	l, ok := e.lanes[sess.ID()]
	if !ok {
		l = &lane{id: sess.ID()}
		e.lanes[sess.ID()] = l
	}
	l.queue = append(l.queue, j)
	if !l.running {
		l.running = true
		go e.drain(l)
	}
	return j.done, nil
}

// HandleEvent processes event for sess and waits for the outcome.
//
// When no transition matches, the fallback runs and the outcome reports
// domain.MatchFallback (or domain.MatchNone inside Default_Fallback) with a
// nil error. A failing action aborts the turn with a
// *domain.ActionExecutionError and leaves the session in its state.
func (e *Engine) HandleEvent(ctx context.Context, event *domain.RecognizedEvent, sess *session.Session) (*domain.Outcome, error) {
	done, err := e.Submit(ctx, event, sess)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-done:
		return res.Outcome, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting turns and waits for the queued ones. If ctx
// expires first, running turns are cancelled and ctx.Err() is returned once
// they have unwound, or after UnwindGrace.
// A second call returns a *domain.IllegalStateError.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return &domain.IllegalStateError{Op: "shutdown", Err: domain.ErrAlreadyShutdown}
	}
	e.shutdown = true
	e.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		e.cancel()
		e.logger.Debug("Engine drained")
		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.Warn("Shutdown deadline reached, cancelling in-flight turns", "err", ctx.Err())
		select {
		case <-idle:
		case <-time.After(UnwindGrace):
			e.logger.Error("In-flight turns did not unwind after cancellation", "grace", UnwindGrace)
		}
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown was called.
func (e *Engine) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}
