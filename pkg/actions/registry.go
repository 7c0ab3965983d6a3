package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// ActionFunc defines the signature of a function-backed action.
// It receives a context and the bound parameters, and returns a result or error.
type ActionFunc func(ctx context.Context, params map[string]any) (any, error)

// Func adapts an ActionFunc to ports.Action.
func Func(name string, fn ActionFunc) ports.Action {
	return funcAction{name: name, fn: fn}
}

type funcAction struct {
	name string
	fn   ActionFunc
}

func (a funcAction) Name() string { return a.name }

func (a funcAction) Execute(ctx context.Context, params map[string]any) (any, error) {
	return a.fn(ctx, params)
}

// Registry manages the available actions. It implements ports.ActionResolver.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ports.Action
}

// NewRegistry creates a registry holding the given actions.
func NewRegistry(actions ...ports.Action) *Registry {
	r := &Registry{
		actions: make(map[string]ports.Action),
	}
	for _, a := range actions {
		r.Register(a)
	}
	return r
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(action ports.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.Name()] = action
}

// RegisterFunc registers a function-backed action.
func (r *Registry) RegisterFunc(name string, fn ActionFunc) {
	r.Register(Func(name, fn))
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (ports.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Execute looks up an action by name and executes it.
// Returns an error wrapping domain.ErrActionNotFound if the action is not found.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	a, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, name)
	}
	return a.Execute(ctx, params)
}

// Names returns the registered action names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the action names referenced by model that are not registered.
func (r *Registry) Missing(model *domain.Model) []string {
	seen := make(map[string]bool)
	var missing []string
	check := func(specs []domain.ActionSpec) {
		for _, spec := range specs {
			if _, ok := r.Lookup(spec.Action); !ok && !seen[spec.Action] {
				seen[spec.Action] = true
				missing = append(missing, spec.Action)
			}
		}
	}
	for _, s := range model.States {
		check(s.Body)
		check(s.Fallback)
		for _, t := range s.Transitions {
			check(t.Actions)
		}
	}
	sort.Strings(missing)
	return missing
}
