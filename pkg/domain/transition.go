package domain

// Transition moves a session from its owning state to Target.
//
// A regular transition matches when On (if set) is the definition of the
// recognized event and Guard (if set) holds. A wildcard transition matches any
// event for which its Guard, if any, holds. Wildcards are only considered once
// every regular transition of the state has failed to match.
type Transition struct {
	On       *EventDefinition
	Guard    Guard
	Wildcard bool
	Target   *State
	Actions  []ActionSpec
}

// Matches evaluates the transition against a turn.
func (t *Transition) Matches(in GuardInput) (bool, error) {
	if !t.Wildcard {
		if t.On == nil && t.Guard == nil {
			return false, nil
		}
		if t.On != nil && (in.Event == nil || in.Event.Definition != t.On) {
			return false, nil
		}
	}
	if t.Guard == nil {
		return true, nil
	}
	return t.Guard.Eval(in)
}

// Describe renders the trigger of the transition for logs and diagrams.
func (t *Transition) Describe() string {
	switch {
	case t.Wildcard && t.Guard == nil:
		return "*"
	case t.Wildcard:
		return "* when " + DescribeGuard(t.Guard)
	case t.On != nil && t.Guard == nil:
		return t.On.QualifiedName()
	case t.On != nil:
		return t.On.QualifiedName() + " when " + DescribeGuard(t.Guard)
	default:
		return DescribeGuard(t.Guard)
	}
}
