package domain

import "time"

// SessionSnapshot is the persisted form of a session.
type SessionSnapshot struct {
	ID      string         `json:"id"`
	State   string         `json:"state"`
	Context map[string]any `json:"context"`

	// ReturnVariables lists the context keys that were bound from action results.
	ReturnVariables []string `json:"return_variables,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSnapshot creates an empty snapshot positioned at state.
func NewSnapshot(id, state string) *SessionSnapshot {
	return &SessionSnapshot{
		ID:        id,
		State:     state,
		Context:   make(map[string]any),
		UpdatedAt: time.Now(),
	}
}

// Clone returns a copy that shares no maps or slices with s.
// Context values themselves are copied shallowly.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		c.Context[k] = v
	}
	c.ReturnVariables = append([]string(nil), s.ReturnVariables...)
	return &c
}
