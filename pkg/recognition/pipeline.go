package recognition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// Pipeline composes pre-processors, a backend and post-processors.
// It is safe for concurrent use once trained.
type Pipeline struct {
	backend ports.Recognizer
	pre     []ports.PreProcessor
	post    []ports.PostProcessor
	monitor ports.Monitor
	logger  *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreProcessors appends pre-processors, applied in the given order.
func WithPreProcessors(p ...ports.PreProcessor) Option {
	return func(pl *Pipeline) {
		pl.pre = append(pl.pre, p...)
	}
}

// WithPostProcessors appends post-processors, applied in the given order.
func WithPostProcessors(p ...ports.PostProcessor) Option {
	return func(pl *Pipeline) {
		pl.post = append(pl.post, p...)
	}
}

// WithMonitor attaches an analytics monitor.
func WithMonitor(m ports.Monitor) Option {
	return func(pl *Pipeline) {
		pl.monitor = m
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// NewPipeline wraps backend. A nil backend is reported as a
// *domain.NullReferenceError.
func NewPipeline(backend ports.Recognizer, opts ...Option) (*Pipeline, error) {
	if backend == nil {
		return nil, &domain.NullReferenceError{Arg: "backend"}
	}
	p := &Pipeline{
		backend: backend,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Backend returns the wrapped recognizer.
func (p *Pipeline) Backend() ports.Recognizer { return p.backend }

// PreProcessors returns the names of the pre-processors, in order.
func (p *Pipeline) PreProcessors() []string {
	names := make([]string, len(p.pre))
	for i, pp := range p.pre {
		names[i] = pp.Name()
	}
	return names
}

// PostProcessors returns the names of the post-processors, in order.
func (p *Pipeline) PostProcessors() []string {
	names := make([]string, len(p.post))
	for i, pp := range p.post {
		names[i] = pp.Name()
	}
	return names
}

// Monitor returns the attached monitor, or nil.
func (p *Pipeline) Monitor() ports.Monitor { return p.monitor }

// Train forwards intents to the backend.
func (p *Pipeline) Train(ctx context.Context, intents []*domain.EventDefinition) error {
	if err := p.checkOpen("train"); err != nil {
		return err
	}
	if err := p.backend.Train(ctx, intents); err != nil {
		return &domain.RecognitionFailure{Backend: p.backend.Name(), Err: err}
	}
	p.logger.Debug("Recognizer trained", "backend", p.backend.Name(), "intents", len(intents))
	return nil
}

// Process recognizes raw. session may be nil.
//
// A backend error is returned as a *domain.RecognitionFailure; the pipeline
// never turns it into the fallback intent. The monitor sees every call but
// cannot alter the result.
func (p *Pipeline) Process(ctx context.Context, raw string, session ports.SessionView) (*domain.RecognizedEvent, error) {
	if err := p.checkOpen("process"); err != nil {
		return nil, err
	}

	start := time.Now()
	input := raw
	for _, pre := range p.pre {
		input = pre.PreProcess(input, session)
	}

	event, err := p.backend.Recognize(ctx, input, session)
	if err == nil && event == nil {
		err = &domain.NullReferenceError{Arg: "recognized event"}
	}
	if err != nil {
		failure := &domain.RecognitionFailure{Backend: p.backend.Name(), Input: raw, Err: err}
		p.observe(ctx, session, raw, input, nil, time.Since(start), failure)
		p.logger.Warn("Recognition failed", "backend", p.backend.Name(), "err", err)
		return nil, failure
	}

	for _, post := range p.post {
		if next := post.PostProcess(event, session); next != nil {
			event = next
		}
	}

	p.observe(ctx, session, raw, input, event, time.Since(start), nil)
	return event, nil
}

func (p *Pipeline) observe(ctx context.Context, session ports.SessionView, raw, processed string, ev *domain.RecognizedEvent, latency time.Duration, err error) {
	if p.monitor == nil {
		return
	}
	rec := ports.RecognitionRecord{
		Timestamp: time.Now(),
		Input:     raw,
		Processed: processed,
		Latency:   latency,
		Err:       err,
	}
	if session != nil {
		rec.SessionID = session.ID()
		rec.State = session.CurrentState()
	}
	if ev != nil {
		rec.Event = ev.Name()
		rec.Confidence = ev.Confidence
	}
	p.monitor.Observe(ctx, rec)
}

// Shutdown releases the backend and the monitor. A second call returns a
// *domain.IllegalStateError.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return &domain.IllegalStateError{Op: "shutdown pipeline", Err: domain.ErrAlreadyShutdown}
	}
	p.shutdown = true
	p.mu.Unlock()

	err := p.backend.Shutdown(ctx)
	if p.monitor != nil {
		if cerr := p.monitor.Close(); cerr != nil {
			p.logger.Warn("Failed to close recognition monitor", "err", cerr)
		}
	}
	return err
}

// IsShutdown reports whether Shutdown was called.
func (p *Pipeline) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shutdown
}

func (p *Pipeline) checkOpen(op string) error {
	if p.IsShutdown() {
		return &domain.IllegalStateError{Op: op, Err: domain.ErrAlreadyShutdown}
	}
	return nil
}
