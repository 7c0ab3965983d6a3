package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// lockEntry serializes the creation of one session and is garbage collected
// by reference counting once nobody waits on it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Store owns the sessions of an engine. It guarantees a single *Session per id
// for its whole lifetime and never holds a global lock while doing I/O, so
// unrelated sessions never block one another.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	creating map[string]*lockEntry
	released bool

	persist   ports.StateStore        // Optional durable storage
	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	initState string
	logger    *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithStateStore persists every session after each unit of work and resumes
// unknown ids from it.
func WithStateStore(store ports.StateStore) Option {
	return func(s *Store) {
		s.persist = store
	}
}

// WithLocker enables distributed locking around each unit of work.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.lockTTL = ttl
	}
}

// WithInitialState overrides the state new sessions start in.
func WithInitialState(name string) Option {
	return func(s *Store) {
		s.initState = name
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:  make(map[string]*Session),
		creating:  make(map[string]*lockEntry),
		lockTTL:   30 * time.Second,
		initState: domain.InitState,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session registered for id, creating it (or resuming
// it from the StateStore) on first contact. New sessions start in Init.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, &domain.InvalidArgumentError{Arg: "sessionID", Reason: "must not be empty"}
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, &domain.IllegalStateError{Op: "get session", Err: domain.ErrAlreadyShutdown}
	}
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	entry := s.acquire(id)
	s.mu.Unlock()

	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(id)
	}()

	// Another caller may have created it while we waited.
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	snap, err := s.resume(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := &Session{id: id, store: s, snap: snap}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, &domain.IllegalStateError{Op: "get session", Err: domain.ErrAlreadyShutdown}
	}
	s.sessions[id] = sess
	s.logger.Debug("session created", "session_id", id, "state", snap.State)
	return sess, nil
}

// Lookup returns a registered session without creating it.
func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Snapshot returns a copy of the state of session id, read from memory when
// the session is loaded and from the StateStore otherwise.
func (s *Store) Snapshot(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	if sess, ok := s.Lookup(id); ok {
		return sess.Snapshot(), nil
	}
	if s.persist == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap, err := s.persist.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.ID = id
	return snap, nil
}

// List returns the ids of the in-memory sessions merged with the persisted ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]bool, len(s.sessions))
	for id := range s.sessions {
		seen[id] = true
	}
	s.mu.Unlock()

	if s.persist != nil {
		stored, err := s.persist.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored sessions: %w", err)
		}
		for _, id := range stored {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of in-memory sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Release drops every in-memory session. Persisted snapshots are kept.
// The store refuses new sessions afterwards.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.sessions = make(map[string]*Session)
}

// resume loads the persisted snapshot of id or creates a fresh one.
func (s *Store) resume(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	if s.persist == nil {
		return domain.NewSnapshot(id, s.initState), nil
	}
	snap, err := s.persist.Load(ctx, id)
	if err == nil {
		if snap.Context == nil {
			snap.Context = make(map[string]any)
		}
		snap.ID = id
		return snap, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	return domain.NewSnapshot(id, s.initState), nil
}

// acquire gets or creates a creation lock entry and increments its reference count.
// The caller MUST hold s.mu, Lock the entry.mu, and call release(id) after unlocking.
func (s *Store) acquire(id string) *lockEntry {
	entry, exists := s.creating[id]
	if !exists {
		entry = &lockEntry{}
		s.creating[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (s *Store) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.creating[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(s.creating, id)
	}
}
