package memory

import (
	"context"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Provider implements ports.ModelProvider and ports.Watchable over a model
// held in memory. Set replaces the model and notifies watchers, which makes it
// handy for tests and for hosts that build models programmatically.
type Provider struct {
	mu       sync.RWMutex
	model    *domain.Model
	watchers []chan struct{}
}

// NewProvider creates a provider serving model.
func NewProvider(model *domain.Model) *Provider {
	return &Provider{model: model}
}

// Load returns the current model.
func (p *Provider) Load(ctx context.Context) (*domain.Model, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, &domain.NullReferenceError{Arg: "model"}
	}
	return p.model, nil
}

// Set replaces the model and signals every watcher.
func (p *Provider) Set(model *domain.Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
	for _, ch := range p.watchers {
		select {
		case ch <- struct{}{}:
		default: // a reload is already pending
		}
	}
}

// Watch returns a channel signaled on every Set until ctx is done.
func (p *Provider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, w := range p.watchers {
			if w == ch {
				p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
				break
			}
		}
	}()
	return ch, nil
}
