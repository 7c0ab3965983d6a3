/*
Package index derives and caches read-only facts about a dialogue model.

An Index knows the entry and fallback states, the top-level intents (those
reachable from Init through zero or more wildcard transitions) and every event
the model's transitions reference. It is built once per loaded model and never
mutated, so one Index is shared by all sessions of an engine.

Reloading an import invalidates the index: use Index.Stale to detect it and
build a new one.
*/
package index
