package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates generic events from trainable intents.
type EventKind int

const (
	// KindEvent is a generic event, typically emitted by a platform (webhook, button click).
	KindEvent EventKind = iota
	// KindIntent is an event recognized from user utterances.
	KindIntent
)

func (k EventKind) String() string {
	if k == KindIntent {
		return "intent"
	}
	return "event"
}

// EventDefinition declares an event the model can react to.
//
// Definitions are compared by identity: two definitions sharing a name but
// declared by different libraries are distinct events.
type EventDefinition struct {
	Name    string
	Library string
	Kind    EventKind

	// Utterances are training sentences, only meaningful for intents.
	// The engine never reads them; recognition backends do.
	Utterances []string

	// Parameters lists the names of the values a recognizer may extract.
	Parameters []string
}

// NewEvent declares a generic event.
func NewEvent(name string) *EventDefinition {
	return &EventDefinition{Name: name, Kind: KindEvent}
}

// NewIntent declares an intent with optional training utterances.
func NewIntent(name string, utterances ...string) *EventDefinition {
	return &EventDefinition{Name: name, Kind: KindIntent, Utterances: utterances}
}

// IsIntent reports whether the definition is trainable.
func (e *EventDefinition) IsIntent() bool {
	return e != nil && e.Kind == KindIntent
}

// QualifiedName returns "library.name" for imported definitions and the bare name otherwise.
func (e *EventDefinition) QualifiedName() string {
	if e == nil {
		return ""
	}
	if e.Library == "" {
		return e.Name
	}
	return e.Library + "." + e.Name
}

func (e *EventDefinition) String() string {
	return e.QualifiedName()
}

// DefaultFallbackIntent is produced by recognizers when no intent matches the input.
var DefaultFallbackIntent = &EventDefinition{
	Name: "Default_Fallback_Intent",
	Kind: KindIntent,
}

// RecognizedEvent is the result of a single recognition. It lives for one turn.
type RecognizedEvent struct {
	ID           string
	Definition   *EventDefinition
	Input        string
	Params       map[string]any
	Confidence   float64
	RecognizedAt time.Time
}

// NewRecognizedEvent creates an event for def with a fresh identifier.
func NewRecognizedEvent(def *EventDefinition, input string) *RecognizedEvent {
	return &RecognizedEvent{
		ID:           uuid.NewString(),
		Definition:   def,
		Input:        input,
		Params:       make(map[string]any),
		Confidence:   1,
		RecognizedAt: time.Now(),
	}
}

// Name returns the qualified name of the underlying definition.
func (e *RecognizedEvent) Name() string {
	if e == nil {
		return ""
	}
	return e.Definition.QualifiedName()
}

// Param returns an extracted parameter value.
func (e *RecognizedEvent) Param(name string) (any, bool) {
	if e == nil || e.Params == nil {
		return nil, false
	}
	v, ok := e.Params[name]
	return v, ok
}

// IsFallback reports whether nothing was recognized.
func (e *RecognizedEvent) IsFallback() bool {
	return e != nil && e.Definition == DefaultFallbackIntent
}

// Clone returns a copy whose parameter map can be modified independently.
func (e *RecognizedEvent) Clone() *RecognizedEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Params = make(map[string]any, len(e.Params))
	for k, v := range e.Params {
		c.Params[k] = v
	}
	return &c
}
