package domain

import (
	"fmt"
)

// Import is a library of event definitions the model depends on.
// Digest identifies the content that was loaded, so a reload can tell whether
// anything changed.
type Import struct {
	Path   string
	Alias  string
	Digest string
	Events []*EventDefinition
}

// Model is a loaded dialogue state machine. It is never mutated after load and
// is shared read-only by every session.
type Model struct {
	Name    string
	Imports []Import
	Events  []*EventDefinition
	States  []*State
}

// State returns the state with the given name, or nil.
func (m *Model) State(name string) *State {
	if m == nil {
		return nil
	}
	for _, s := range m.States {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AllEvents returns the events declared by the imports followed by the model's own.
func (m *Model) AllEvents() []*EventDefinition {
	var out []*EventDefinition
	for _, imp := range m.Imports {
		out = append(out, imp.Events...)
	}
	return append(out, m.Events...)
}

// Validate checks the referential integrity of the model. Every problem found
// is reported in a single *ModelError.
func (m *Model) Validate() error {
	if m == nil {
		return &NullReferenceError{Arg: "model"}
	}

	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	owned := make(map[*State]bool, len(m.States))
	names := make(map[string]bool, len(m.States))
	for _, s := range m.States {
		if s == nil {
			addf("nil state")
			continue
		}
		if s.Name == "" {
			addf("state with empty name")
		}
		if names[s.Name] {
			addf("duplicate state %q", s.Name)
		}
		names[s.Name] = true
		owned[s] = true
	}
	if !names[InitState] {
		addf("missing %s state", InitState)
	}

	for _, s := range m.States {
		if s == nil {
			continue
		}
		checkActions := func(where string, specs []ActionSpec) {
			for i, a := range specs {
				if a.Action == "" {
					addf("state %q: %s action #%d has no name", s.Name, where, i)
				}
			}
		}
		checkActions("body", s.Body)
		checkActions("fallback", s.Fallback)

		wildcards := 0
		for i, t := range s.Transitions {
			if t == nil {
				addf("state %q: transition #%d is nil", s.Name, i)
				continue
			}
			if t.Wildcard {
				wildcards++
			} else if t.On == nil && t.Guard == nil {
				addf("state %q: transition #%d has neither event nor guard", s.Name, i)
			}
			switch {
			case t.Target == nil:
				addf("state %q: transition #%d has no target", s.Name, i)
			case !owned[t.Target]:
				addf("state %q: transition #%d targets unknown state %q", s.Name, i, t.Target.Name)
			case t.Target.IsInit():
				addf("state %q: transition #%d targets %s", s.Name, i, InitState)
			}
			checkActions(fmt.Sprintf("transition #%d", i), t.Actions)
		}
		if wildcards > 1 {
			addf("state %q: %d wildcard transitions (at most one allowed)", s.Name, wildcards)
		}
	}

	if len(problems) > 0 {
		return &ModelError{Model: m.Name, Problems: problems}
	}
	return nil
}
