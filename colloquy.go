package colloquy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/internal/runtime"
	"github.com/aretw0/colloquy/pkg/actions"
	"github.com/aretw0/colloquy/pkg/config"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/index"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/aretw0/colloquy/pkg/recognition"
	"github.com/aretw0/colloquy/pkg/recognition/factory"
	"github.com/aretw0/colloquy/pkg/session"
)

// Engine is the high-level entry point of the library. It owns the model
// index, the recognition pipeline, the session store and the dispatch runtime.
type Engine struct {
	Name string

	cfg        *config.Config
	logger     *slog.Logger
	registerer prometheus.Registerer
	actions    ports.ActionResolver
	hooks      domain.LifecycleHooks

	stateStore ports.StateStore
	locker     ports.DistributedLocker

	workers       int
	actionTimeout time.Duration

	runtime  *runtime.Engine
	pipeline atomic.Pointer[recognition.Pipeline]
	store    *session.Store
	custom   *recognition.Pipeline
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfig sets the configuration the pipeline and runtime are derived from.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithActions sets the resolver the model's action names are looked up in.
// Defaults to the built-in actions writing to stdout.
func WithActions(resolver ports.ActionResolver) Option {
	return func(e *Engine) {
		e.actions = resolver
	}
}

// WithStateStore persists sessions through store.
func WithStateStore(store ports.StateStore) Option {
	return func(e *Engine) {
		e.stateStore = store
	}
}

// WithLocker serializes turns of one session across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithWorkers overrides ENGINE_WORKERS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithActionTimeout overrides ACTION_TIMEOUT.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.actionTimeout = d
	}
}

// WithRegisterer sets where recognition metrics are registered. Defaults to
// a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithPipeline bypasses the provider factory. The pipeline is trained by New
// and shut down with the engine.
func WithPipeline(p *recognition.Pipeline) Option {
	return func(e *Engine) {
		e.custom = p
	}
}

// New validates model and assembles an engine around it.
//
// A model failing validation is fatal and returns its *domain.ModelError.
// Unless WithPipeline is given, the recognition pipeline is selected from the
// configuration (see factory.Select) and trained on the model's intents.
func New(model *domain.Model, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, &domain.NullReferenceError{Arg: "model"}
	}

	e := &Engine{Name: model.Name}
	for _, opt := range opts {
		opt(e)
	}

	if e.cfg == nil {
		e.cfg = config.New()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.Name != "" {
		e.logger = e.logger.With("model", e.Name)
	}
	if e.registerer == nil {
		e.registerer = prometheus.NewRegistry()
	}
	if e.actions == nil {
		e.actions = actions.NewRegistry(actions.Builtins(os.Stdout)...)
	}

	settings, err := e.cfg.Engine()
	if err != nil {
		return nil, &domain.ConfigurationError{Key: "engine", Reason: "cannot decode settings", Err: err}
	}
	if e.workers <= 0 {
		e.workers = settings.Workers
	}
	if e.actionTimeout <= 0 {
		e.actionTimeout = settings.ActionTimeout
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	ix, err := index.New(model)
	if err != nil {
		return nil, err
	}

	e.runtime = runtime.NewEngine(ix, e.actions,
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
		runtime.WithWorkers(e.workers),
		runtime.WithActionTimeout(e.actionTimeout),
	)

	pipeline, err := e.selectPipeline(ix)
	if err != nil {
		_ = e.runtime.Shutdown(context.Background())
		return nil, err
	}
	e.pipeline.Store(pipeline)

	storeOpts := []session.Option{session.WithLogger(e.logger)}
	if e.stateStore != nil {
		storeOpts = append(storeOpts, session.WithStateStore(e.stateStore))
	}
	if e.locker != nil {
		storeOpts = append(storeOpts, session.WithLocker(e.locker), session.WithLockTTL(settings.LockTTL))
	}
	e.store = session.NewStore(storeOpts...)

	e.warnMissingActions(model)
	return e, nil
}

func (e *Engine) selectPipeline(ix *index.Index) (*recognition.Pipeline, error) {
	if e.custom == nil {
		return factory.Select(e, e.cfg)
	}
	if err := e.custom.Train(context.Background(), ix.Intents()); err != nil {
		return nil, err
	}
	return e.custom, nil
}

func (e *Engine) warnMissingActions(model *domain.Model) {
	reg, ok := e.actions.(interface {
		Missing(*domain.Model) []string
	})
	if !ok {
		return
	}
	if missing := reg.Missing(model); len(missing) > 0 {
		e.logger.Warn("Model references unregistered actions", "actions", missing)
	}
}

// Index returns the index of the current model.
func (e *Engine) Index() *index.Index { return e.runtime.Index() }

// Model returns the current model.
func (e *Engine) Model() *domain.Model { return e.Index().Model() }

// Pipeline returns the recognition pipeline in use.
func (e *Engine) Pipeline() *recognition.Pipeline { return e.pipeline.Load() }

// Registerer returns the registry recognition metrics are registered in.
func (e *Engine) Registerer() prometheus.Registerer { return e.registerer }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// GetOrCreateSession returns the session with the given id, creating it in
// the Init state on first use. Concurrent calls for one id share a session.
func (e *Engine) GetOrCreateSession(ctx context.Context, id string) (*session.Session, error) {
	return e.store.GetOrCreate(ctx, id)
}

// Sessions lists the known session ids, persisted ones included.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// Snapshot returns the state of session id without loading it.
// It fails with domain.ErrSessionNotFound for unknown ids.
func (e *Engine) Snapshot(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	return e.store.Snapshot(ctx, id)
}

// HandleEvent processes an already recognized event and waits for the outcome.
func (e *Engine) HandleEvent(ctx context.Context, event *domain.RecognizedEvent, sess *session.Session) (*domain.Outcome, error) {
	return e.runtime.HandleEvent(ctx, event, sess)
}

// Submit enqueues event without waiting. The returned channel receives the
// result once the turn completes.
func (e *Engine) Submit(ctx context.Context, event *domain.RecognizedEvent, sess *session.Session) (<-chan runtime.Result, error) {
	return e.runtime.Submit(ctx, event, sess)
}

// HandleRawInput recognizes raw for sess and handles the resulting event.
//
// A recognition failure is returned as a *domain.RecognitionFailure and the
// session is left untouched.
func (e *Engine) HandleRawInput(ctx context.Context, raw string, sess *session.Session) (*domain.Outcome, error) {
	if sess == nil {
		return nil, &domain.NullReferenceError{Arg: "session"}
	}
	if e.runtime.IsShutdown() {
		return nil, &domain.IllegalStateError{Op: "handle input", Err: domain.ErrAlreadyShutdown}
	}

	event, err := e.Pipeline().Process(ctx, raw, sess)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Input recognized",
		"session_id", sess.ID(),
		"event", event.Name(),
		"confidence", event.Confidence,
	)
	return e.runtime.HandleEvent(ctx, event, sess)
}

// Reload swaps the model. When model differs from the current one (or its
// import set changed) the index is rebuilt and the pipeline retrained before
// the swap; turns already running finish on the previous model.
func (e *Engine) Reload(ctx context.Context, model *domain.Model) error {
	if model == nil {
		return &domain.NullReferenceError{Arg: "model"}
	}
	if e.runtime.IsShutdown() {
		return &domain.IllegalStateError{Op: "reload", Err: domain.ErrAlreadyShutdown}
	}
	if !e.Index().Stale(model) {
		return nil
	}
	if err := model.Validate(); err != nil {
		return err
	}
	ix, err := index.New(model)
	if err != nil {
		return err
	}
	if err := e.Pipeline().Train(ctx, ix.Intents()); err != nil {
		return err
	}
	e.runtime.SetIndex(ix)
	e.warnMissingActions(model)
	e.logger.Info("Model reloaded", "states", len(model.States), "intents", len(ix.Intents()))
	return nil
}

// Follow loads the model from provider and reloads it every time a Watchable
// provider signals a change, until ctx is done. Reload failures are logged and
// the previous model stays in service.
func (e *Engine) Follow(ctx context.Context, provider ports.ModelProvider) error {
	if provider == nil {
		return &domain.NullReferenceError{Arg: "provider"}
	}
	model, err := provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	if err := e.Reload(ctx, model); err != nil {
		return err
	}

	w, ok := provider.(ports.Watchable)
	if !ok {
		return nil
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch model: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			model, err := provider.Load(ctx)
			if err == nil {
				err = e.Reload(ctx, model)
			}
			if err != nil {
				e.logger.Error("Hot reload failed, keeping previous model", "err", err)
			}
		}
	}
}

// Shutdown drains the runtime, then stops the pipeline and releases the
// sessions. A second call returns a *domain.IllegalStateError.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.runtime.Shutdown(ctx); err != nil {
		var illegal *domain.IllegalStateError
		if errors.As(err, &illegal) {
			return err
		}
		defer e.store.Release()
		return errors.Join(err, e.Pipeline().Shutdown(ctx))
	}
	e.store.Release()
	return e.Pipeline().Shutdown(ctx)
}

// IsShutdown reports whether Shutdown was called.
func (e *Engine) IsShutdown() bool { return e.runtime.IsShutdown() }
