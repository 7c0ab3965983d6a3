/*
Package ports defines the driven ports (interfaces) of the Colloquy engine.

These interfaces decouple the dialogue core from external implementations,
allowing the engine to work with any recognition backend, action runtime,
storage backend or model source.

# Key Interfaces

  - Recognizer: turns raw user input into a domain.RecognizedEvent.
  - PreProcessor / PostProcessor: ordered transforms around a Recognizer.
  - Monitor: observes recognition calls for analytics.
  - Action: a named callable unit run by transitions and state bodies.
  - StateStore: persists session snapshots.
  - DistributedLocker: serializes access to a session across replicas.
  - ModelProvider: supplies a parsed dialogue model.
*/
package ports
