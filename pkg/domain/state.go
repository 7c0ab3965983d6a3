package domain

const (
	// InitState is the name of the single entry point of every model.
	InitState = "Init"

	// FallbackState is the name of the safety-net state whose body is run when
	// the current state has no fallback of its own.
	FallbackState = "Default_Fallback"
)

// State is a named node of the dialogue state machine.
type State struct {
	Name string

	// Transitions are evaluated in declaration order.
	Transitions []*Transition

	// Body actions run every time the state is entered.
	Body []ActionSpec

	// Fallback actions run when no transition matches an event received in this state.
	Fallback []ActionSpec
}

// NewState creates an empty state.
func NewState(name string) *State {
	return &State{Name: name}
}

// Wildcard returns the wildcard transition of the state, or nil.
func (s *State) Wildcard() *Transition {
	for _, t := range s.Transitions {
		if t.Wildcard {
			return t
		}
	}
	return nil
}

// IsInit reports whether s is the entry point.
func (s *State) IsInit() bool { return s != nil && s.Name == InitState }

// IsFallback reports whether s is the Default_Fallback state.
func (s *State) IsFallback() bool { return s != nil && s.Name == FallbackState }

func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}
