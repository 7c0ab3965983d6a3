package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Session is the conversational state of one user: the current state of the
// machine and a context of variables that persists across turns.
//
// Reads (ID, CurrentState, Get, Snapshot) are safe at any time. Writes happen
// only inside Do, which runs units of work one at a time.
type Session struct {
	id    string
	store *Store

	turn sync.Mutex // serializes units of work

	mu   sync.RWMutex // guards snap
	snap *domain.SessionSnapshot
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CurrentState returns the name of the state the session is in.
func (s *Session) CurrentState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State
}

// Get reads a context variable.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.Context[key]
	return v, ok
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() *domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Do runs fn with exclusive access to the session. Units of work submitted to
// the same session never overlap and observe each other's writes in order.
//
// fn works on a copy of the session state. The copy replaces the session
// state once it is persisted, so a failed Save leaves the session as it was
// before the unit of work. A failing fn still has its writes kept: partial
// context writes must survive.
//
// When the store has a DistributedLocker the lock is held for the duration of
// fn, and the latest persisted snapshot is reloaded first so that writes from
// other replicas are visible. If that reload fails, fn does not run.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.turn.Lock()
	defer s.turn.Unlock()

	st := s.store
	if st.locker != nil {
		unlock, err := st.locker.Lock(ctx, s.id, st.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				st.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", s.id,
					"err", err,
				)
			}
		}()
		if err := s.refresh(ctx); err != nil {
			return fmt.Errorf("failed to reload session: %w", err)
		}
	}

	tx := &Tx{id: s.id, snap: s.Snapshot(), bound: make(map[string]any)}
	err := fn(ctx, tx)
	tx.done = true
	if !tx.dirty {
		return err
	}

	tx.snap.UpdatedAt = time.Now()
	if st.persist != nil {
		if perr := st.persist.Save(context.WithoutCancel(ctx), s.id, tx.snap.Clone()); perr != nil {
			if err != nil {
				st.logger.Error("failed to persist session after failed turn",
					"session_id", s.id,
					"err", perr,
				)
				return err
			}
			return fmt.Errorf("failed to persist session: %w", perr)
		}
	}

	s.mu.Lock()
	s.snap = tx.snap
	s.mu.Unlock()
	return err
}

// refresh replaces the in-memory snapshot with the persisted one. A session
// that was never persisted keeps its in-memory state.
func (s *Session) refresh(ctx context.Context) error {
	if s.store.persist == nil {
		return nil
	}
	snap, err := s.store.persist.Load(ctx, s.id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if snap.Context == nil {
		snap.Context = make(map[string]any)
	}
	snap.ID = s.id
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Tx is the handle a unit of work uses to read and write its session.
// It must not be retained after Do returns.
type Tx struct {
	id    string
	snap  *domain.SessionSnapshot
	bound map[string]any
	dirty bool
	done  bool
}

// ID returns the session identifier.
func (tx *Tx) ID() string { return tx.id }

// CurrentState returns the name of the current state.
func (tx *Tx) CurrentState() string { return tx.snap.State }

// Get reads a context variable.
func (tx *Tx) Get(key string) (any, bool) {
	v, ok := tx.snap.Context[key]
	return v, ok
}

// Context returns a copy of the session context.
func (tx *Tx) Context() map[string]any {
	out := make(map[string]any, len(tx.snap.Context))
	for k, v := range tx.snap.Context {
		out[k] = v
	}
	return out
}

// SetState moves the session to the named state.
func (tx *Tx) SetState(name string) {
	tx.mutate(func(snap *domain.SessionSnapshot) {
		snap.State = name
	})
}

// Set writes a context variable.
func (tx *Tx) Set(key string, value any) {
	tx.mutate(func(snap *domain.SessionSnapshot) {
		snap.Context[key] = value
	})
}

// Bind writes a context variable holding an action result and records it as a
// return variable.
func (tx *Tx) Bind(key string, value any) {
	tx.mutate(func(snap *domain.SessionSnapshot) {
		snap.Context[key] = value
		for _, rv := range snap.ReturnVariables {
			if rv == key {
				return
			}
		}
		snap.ReturnVariables = append(snap.ReturnVariables, key)
	})
	tx.bound[key] = value
}

// Bindings returns the variables bound during this unit of work.
func (tx *Tx) Bindings() map[string]any {
	out := make(map[string]any, len(tx.bound))
	for k, v := range tx.bound {
		out[k] = v
	}
	return out
}

func (tx *Tx) mutate(fn func(*domain.SessionSnapshot)) {
	if tx.done {
		panic("session: Tx used after Do returned")
	}
	fn(tx.snap)
	tx.dirty = true
}
