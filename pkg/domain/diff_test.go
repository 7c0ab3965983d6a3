package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      *SessionSnapshot
		new      *SessionSnapshot
		wantDiff *SnapshotDiff // nil means no diff expected
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &SessionSnapshot{
				ID:      "sess-1",
				State:   "Init",
				Context: map[string]any{"a": 1},
			},
			wantDiff: &SnapshotDiff{
				SessionID: "sess-1",
				State:     &[]string{"Init"}[0],
				Context:   map[string]any{"a": 1},
			},
		},
		{
			name:     "No Changes",
			old:      &SessionSnapshot{ID: "sess-1", State: "Init", Context: map[string]any{"a": 1}},
			new:      &SessionSnapshot{ID: "sess-1", State: "Init", Context: map[string]any{"a": 1}},
			wantDiff: nil,
		},
		{
			name: "State Change",
			old:  &SessionSnapshot{ID: "sess-1", State: "Init"},
			new:  &SessionSnapshot{ID: "sess-1", State: "Greeting"},
			wantDiff: &SnapshotDiff{
				SessionID: "sess-1",
				State:     &[]string{"Greeting"}[0],
			},
		},
		{
			name: "Context Added & Modified",
			old:  &SessionSnapshot{ID: "sess-1", State: "mid", Context: map[string]any{"a": 1, "b": "old"}},
			new:  &SessionSnapshot{ID: "sess-1", State: "mid", Context: map[string]any{"a": 1, "b": "new", "c": true}},
			wantDiff: &SnapshotDiff{
				SessionID: "sess-1",
				Context:   map[string]any{"b": "new", "c": true},
			},
		},
		{
			name: "Context Deletion",
			old:  &SessionSnapshot{Context: map[string]any{"a": 1, "b": 2}},
			new:  &SessionSnapshot{Context: map[string]any{"a": 1}},
			wantDiff: &SnapshotDiff{
				Context: map[string]any{"b": nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %v", tt.wantDiff)
			}

			if got.SessionID != tt.wantDiff.SessionID {
				t.Errorf("Diff().SessionID = %v, want %v", got.SessionID, tt.wantDiff.SessionID)
			}
			if !reflect.DeepEqual(got.Context, tt.wantDiff.Context) {
				t.Errorf("Diff().Context = %v, want %v", got.Context, tt.wantDiff.Context)
			}
			if !equalPtr(got.State, tt.wantDiff.State) {
				t.Errorf("Diff().State = %v, want %v", got.State, tt.wantDiff.State)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Deletions as Null", func(t *testing.T) {
		s1 := &SessionSnapshot{Context: map[string]any{"a": 1, "b": 2}}
		s2 := &SessionSnapshot{Context: map[string]any{"a": 1}}
		diff := Diff(s1, s2)

		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}

		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"b":null`) {
			t.Errorf("JSON should contain 'b':null for deletion, got: %s", string(bytes))
		}
		if strings.Contains(string(bytes), `"state"`) {
			t.Errorf("JSON should not contain 'state' when unchanged, got: %s", string(bytes))
		}
	})
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
