package ports

import "context"

// Action is a callable unit referenced by name from the model.
// The engine passes the bound parameters and stores the result in the
// session context when the action spec declares a return variable.
type Action interface {
	Name() string
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ActionResolver looks actions up by name.
type ActionResolver interface {
	Lookup(name string) (Action, bool)
}
