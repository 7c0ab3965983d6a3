package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrActionNotFound is returned when an action spec names an unregistered action.
var ErrActionNotFound = errors.New("action not found")

// ErrAlreadyShutdown is wrapped by IllegalStateError when a component is used after shutdown.
var ErrAlreadyShutdown = errors.New("already shut down")

// NullReferenceError reports a required argument that was nil.
type NullReferenceError struct {
	Arg string
}

func (e *NullReferenceError) Error() string {
	return fmt.Sprintf("null reference: %s must not be nil", e.Arg)
}

// InvalidArgumentError reports an argument that is present but unusable.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Reason)
}

// ConfigurationError reports an unsatisfiable or contradictory configuration.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg += " (" + e.Key + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RecognitionFailure reports a recognition backend that could not process the input.
type RecognitionFailure struct {
	Backend string
	Input   string
	Err     error
}

func (e *RecognitionFailure) Error() string {
	return fmt.Sprintf("recognition failed (%s): %v", e.Backend, e.Err)
}

func (e *RecognitionFailure) Unwrap() error { return e.Err }

// ActionFailureKind distinguishes failing actions from actions that ran out of time.
type ActionFailureKind string

const (
	ActionFailure ActionFailureKind = "failure"
	ActionTimeout ActionFailureKind = "timeout"
)

// ActionExecutionError reports an aborted transition. The session stays in
// State; Bindings holds the return variables bound before the failure.
type ActionExecutionError struct {
	Kind     ActionFailureKind
	Action   string
	State    string
	Bindings map[string]any
	Err      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q in state %q: %s: %v", e.Action, e.State, e.Kind, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// IllegalStateError reports an operation that is invalid in the current lifecycle phase.
type IllegalStateError struct {
	Op  string
	Err error
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal state: %s: %v", e.Op, e.Err)
}

func (e *IllegalStateError) Unwrap() error { return e.Err }

// ModelError lists the integrity problems of a model. It is fatal at load time.
type ModelError struct {
	Model    string
	Problems []string
}

func (e *ModelError) Error() string {
	problems := append([]string(nil), e.Problems...)
	sort.Strings(problems)
	name := e.Model
	if name == "" {
		name = "model"
	}
	return fmt.Sprintf("invalid %s: %s", name, strings.Join(problems, "; "))
}
