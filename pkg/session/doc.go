/*
Package session implements the Session Store of the dialogue engine.

A Store hands out exactly one Session per id. Each Session owns its current
state and context, and offers Do, an exclusive-access scope used by the
dispatch engine to process the events of one session strictly one at a time.
Sessions of different ids never contend with each other.

Optionally, sessions are persisted through a ports.StateStore after every unit
of work and serialized across replicas with a ports.DistributedLocker.
*/
package session
