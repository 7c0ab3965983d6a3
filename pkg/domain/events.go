package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventStateEnter   EventType = "state_enter"
	EventStateLeave   EventType = "state_leave"
	EventActionCall   EventType = "action_call"
	EventActionReturn EventType = "action_return"
	EventFallback     EventType = "fallback"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StateEvent represents entry into, exit from or a fallback inside a state.
type StateEvent struct {
	EventBase
	State string `json:"state"`
	Event string `json:"event,omitempty"`
}

// ActionEvent represents an action execution.
type ActionEvent struct {
	EventBase
	State    string         `json:"state"`
	Action   string         `json:"action"`
	Input    map[string]any `json:"input,omitempty"`
	Output   any            `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the turn's goroutine and must not block.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateLeave   func(context.Context, *StateEvent)
	OnActionCall   func(context.Context, *ActionEvent)
	OnActionReturn func(context.Context, *ActionEvent)
	OnFallback     func(context.Context, *StateEvent)
}
