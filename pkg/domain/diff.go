package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	State *string `json:"state,omitempty"`

	// Context contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Context map[string]any `json:"context,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap.
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *SessionSnapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: newSnap.ID}

	if oldSnap == nil || oldSnap.State != newSnap.State {
		state := newSnap.State
		diff.State = &state
	}
	diff.Context = diffContext(oldSnap, newSnap)

	if diff.State == nil && len(diff.Context) == 0 {
		return nil
	}
	return diff
}

func diffContext(old, new *SessionSnapshot) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Context {
			delta[k] = v
		}
		return nilIfEmpty(delta)
	}

	for k, newVal := range new.Context {
		oldVal, exists := old.Context[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old.Context {
		if _, exists := new.Context[k]; !exists {
			delta[k] = nil
		}
	}
	return nilIfEmpty(delta)
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
