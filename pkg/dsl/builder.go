package dsl

import (
	"fmt"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Args are the arguments of an action. A domain.Param value is used as is;
// any other value is bound as a literal.
type Args map[string]any

// Ctx binds an argument to a session context variable.
func Ctx(key string) domain.Param { return domain.FromContext(key) }

// Param binds an argument to a parameter extracted from the user input.
func Param(name string) domain.Param { return domain.FromEvent(name) }

func (a Args) params() map[string]domain.Param {
	if len(a) == 0 {
		return nil
	}
	out := make(map[string]domain.Param, len(a))
	for k, v := range a {
		if p, ok := v.(domain.Param); ok {
			out[k] = p
			continue
		}
		out[k] = domain.Literal(v)
	}
	return out
}

// Builder accumulates the declarations of a model.
type Builder struct {
	name    string
	imports []domain.Import
	events  []*domain.EventDefinition
	states  []*StateBuilder
	byName  map[string]*StateBuilder
}

// New creates a builder for a model called name.
func New(name string) *Builder {
	return &Builder{
		name:   name,
		byName: make(map[string]*StateBuilder),
	}
}

// Intent declares a trainable intent local to the model.
func (b *Builder) Intent(name string, utterances ...string) *domain.EventDefinition {
	def := domain.NewIntent(name, utterances...)
	b.events = append(b.events, def)
	return def
}

// Event declares a generic event local to the model.
func (b *Builder) Event(name string) *domain.EventDefinition {
	def := domain.NewEvent(name)
	b.events = append(b.events, def)
	return def
}

// Use imports the definitions of lib.
func (b *Builder) Use(lib *Library) *Builder {
	b.imports = append(b.imports, domain.Import{
		Path:   lib.name,
		Alias:  lib.name,
		Events: lib.events,
	})
	return b
}

// State returns the builder of the named state, declaring it on first use.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.byName[name]; ok {
		return sb
	}
	sb := &StateBuilder{state: domain.NewState(name), builder: b}
	b.byName[name] = sb
	b.states = append(b.states, sb)
	return sb
}

// Build resolves transition targets and validates the model.
func (b *Builder) Build() (*domain.Model, error) {
	model := &domain.Model{
		Name:    b.name,
		Imports: append([]domain.Import(nil), b.imports...),
		Events:  append([]*domain.EventDefinition(nil), b.events...),
	}

	var problems []string
	for _, sb := range b.states {
		for _, tb := range sb.pending {
			target, ok := b.byName[tb.target]
			if !ok {
				problems = append(problems, fmt.Sprintf("state %q: transition %s targets undeclared state %q",
					sb.state.Name, tb.transition.Describe(), tb.target))
				continue
			}
			tb.transition.Target = target.state
		}
		model.States = append(model.States, sb.state)
	}
	if len(problems) > 0 {
		return nil, &domain.ModelError{Model: b.name, Problems: problems}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// Library groups definitions shared between models.
type Library struct {
	name   string
	events []*domain.EventDefinition
}

// NewLibrary creates an empty library.
func NewLibrary(name string) *Library {
	return &Library{name: name}
}

// Intent declares an intent owned by the library.
func (l *Library) Intent(name string, utterances ...string) *domain.EventDefinition {
	def := domain.NewIntent(name, utterances...)
	def.Library = l.name
	l.events = append(l.events, def)
	return def
}

// Event declares a generic event owned by the library.
func (l *Library) Event(name string) *domain.EventDefinition {
	def := domain.NewEvent(name)
	def.Library = l.name
	l.events = append(l.events, def)
	return def
}
