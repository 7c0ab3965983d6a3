/*
Package domain contains the core domain model of the Colloquy dialogue engine.

It defines the state machine a conversation walks through, the events that drive
it and the typed errors the engine reports. The package is kept pure and free of
I/O or persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - Model: the immutable state machine (States, Transitions, Events, Imports).
  - State: a named node with body, fallback and outgoing transitions.
  - Transition: a guarded (or wildcard) edge carrying an ordered action list.
  - Guard: a boolean expression tree evaluated against the recognized event and
    the session context.
  - EventDefinition: a generic event or a trainable intent.
  - RecognizedEvent: the per-turn result of recognition.
  - SessionSnapshot: the persisted form of a session.
  - Outcome: what a turn did, reported back to the caller.
*/
package domain
