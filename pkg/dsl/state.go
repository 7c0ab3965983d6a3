package dsl

import "github.com/aretw0/colloquy/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state   *domain.State
	builder *Builder
	pending []*TransitionBuilder
}

// Say appends a body action printing text. text may use template syntax over
// the action arguments; use Do("say", ...) to bind context variables to them.
func (s *StateBuilder) Say(text string) *StateBuilder {
	return s.Do("say", Args{"text": text})
}

// Do appends a body action, run every time the state is entered.
func (s *StateBuilder) Do(action string, args Args) *StateBuilder {
	s.state.Body = append(s.state.Body, domain.ActionSpec{Action: action, Params: args.params()})
	return s
}

// SaveAs stores the result of the last body action in the context variable v.
func (s *StateBuilder) SaveAs(v string) *StateBuilder {
	if n := len(s.state.Body); n > 0 {
		s.state.Body[n-1].ReturnVar = v
	}
	return s
}

// Fallback appends an action run when no transition matches in this state.
func (s *StateBuilder) Fallback(action string, args Args) *StateBuilder {
	s.state.Fallback = append(s.state.Fallback, domain.ActionSpec{Action: action, Params: args.params()})
	return s
}

// On starts a transition taken when ev is recognized.
func (s *StateBuilder) On(ev *domain.EventDefinition) *TransitionBuilder {
	return s.transition(&domain.Transition{On: ev})
}

// When starts a transition taken when guard holds, whatever the event.
func (s *StateBuilder) When(guard domain.Guard) *TransitionBuilder {
	return s.transition(&domain.Transition{Guard: guard})
}

// Otherwise starts the wildcard transition, taken when nothing else matched.
func (s *StateBuilder) Otherwise() *TransitionBuilder {
	return s.transition(&domain.Transition{Wildcard: true})
}

// Name returns the state name.
func (s *StateBuilder) Name() string { return s.state.Name }

func (s *StateBuilder) transition(t *domain.Transition) *TransitionBuilder {
	s.state.Transitions = append(s.state.Transitions, t)
	tb := &TransitionBuilder{transition: t, from: s}
	s.pending = append(s.pending, tb)
	return tb
}

// TransitionBuilder configures one transition.
type TransitionBuilder struct {
	transition *domain.Transition
	from       *StateBuilder
	target     string
}

// When adds a guard. Successive calls are combined with And.
func (t *TransitionBuilder) When(guard domain.Guard) *TransitionBuilder {
	if t.transition.Guard == nil {
		t.transition.Guard = guard
	} else {
		t.transition.Guard = domain.And{Left: t.transition.Guard, Right: guard}
	}
	return t
}

// Do appends an action run when the transition is taken.
func (t *TransitionBuilder) Do(action string, args Args) *TransitionBuilder {
	t.transition.Actions = append(t.transition.Actions, domain.ActionSpec{Action: action, Params: args.params()})
	return t
}

// SaveAs stores the result of the last action in the context variable v.
func (t *TransitionBuilder) SaveAs(v string) *TransitionBuilder {
	if n := len(t.transition.Actions); n > 0 {
		t.transition.Actions[n-1].ReturnVar = v
	}
	return t
}

// Go sets the target state, resolved by Build, and returns the source state
// so that further transitions can be chained.
func (t *TransitionBuilder) Go(target string) *StateBuilder {
	t.target = target
	return t.from
}

// Stay targets the source state itself.
func (t *TransitionBuilder) Stay() *StateBuilder {
	return t.Go(t.from.state.Name)
}
