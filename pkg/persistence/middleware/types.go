// Package middleware decorates session stores: encryption at rest and
// masking of personal data before it is persisted.
package middleware

import "github.com/aretw0/colloquy/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain wraps store with every middleware. The first one is the outermost,
// so it sees snapshots before the others on Save.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
