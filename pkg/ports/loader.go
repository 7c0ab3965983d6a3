package ports

import (
	"context"

	"github.com/aretw0/colloquy/pkg/domain"
)

// ModelProvider supplies a parsed dialogue model with resolved state, transition
// and event references.
type ModelProvider interface {
	Load(ctx context.Context) (*domain.Model, error)
}

// Watchable defines an interface for providers that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying model changes.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
