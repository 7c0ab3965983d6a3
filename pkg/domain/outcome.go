package domain

// MatchKind tells how a turn was resolved.
type MatchKind string

const (
	MatchDirect   MatchKind = "direct"   // a regular transition was taken
	MatchWildcard MatchKind = "wildcard" // the state's wildcard transition was taken
	MatchFallback MatchKind = "fallback" // nothing matched; fallback actions ran, state unchanged
	MatchNone     MatchKind = "none"     // nothing matched inside Default_Fallback itself
)

// Outcome reports what a turn did.
type Outcome struct {
	SessionID  string
	Event      *RecognizedEvent
	From       string
	To         string
	Match      MatchKind
	Transition *Transition

	// ResetFrom names the state the session was in when the model no longer
	// declared it. The session was restarted at Init before the event was
	// dispatched.
	ResetFrom string

	// Bindings holds the return variables written during the turn.
	Bindings map[string]any
}

// Moved reports whether the session changed state.
func (o *Outcome) Moved() bool {
	return o != nil && o.From != o.To
}
