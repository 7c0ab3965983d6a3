package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/aretw0/colloquy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_EmptyID(t *testing.T) {
	store := session.NewStore()
	_, err := store.GetOrCreate(context.Background(), "")

	var argErr *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore()

	first, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.InitState, first.CurrentState())

	require.NoError(t, first.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.Set("name", "Alice")
		return nil
	}))

	second, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, first, second)

	v, ok := second.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Alice", v)
}

func TestGetOrCreate_ConcurrentCallersShareOneSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(session.WithStateStore(&slowStore{delay: 5 * time.Millisecond}))

	var wg sync.WaitGroup
	results := make([]*session.Session, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.GetOrCreate(ctx, "shared")
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, store.Len())
}

func TestDo_SerializesUnitsOfWork(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore()
	sess, err := store.GetOrCreate(ctx, "counter")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
				n, _ := tx.Get("n")
				count, _ := n.(int)
				time.Sleep(time.Microsecond)
				tx.Set("n", count+1)
				return nil
			})
		}()
	}
	wg.Wait()

	v, _ := sess.Get("n")
	assert.Equal(t, 100, v)
}

func TestDo_PersistsAndResumes(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()

	store := session.NewStore(session.WithStateStore(backing))
	sess, err := store.GetOrCreate(ctx, "bob")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.Bind("reply", "hi")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.SetState("Greeting")
		assert.Equal(t, map[string]any{}, tx.Bindings())
		return nil
	})
	require.NoError(t, err)

	saved, err := backing.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", saved.State)
	assert.Equal(t, "hi", saved.Context["reply"])
	assert.Equal(t, []string{"reply"}, saved.ReturnVariables)

	// A new store (e.g. after a restart) resumes the conversation.
	restarted := session.NewStore(session.WithStateStore(backing))
	resumed, err := restarted.GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", resumed.CurrentState())

	ids, err := restarted.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, ids)
}

func TestDo_UsesDistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &recordingLocker{}
	store := session.NewStore(session.WithLocker(locker), session.WithLockTTL(time.Second))

	sess, err := store.GetOrCreate(ctx, "carol")
	require.NoError(t, err)
	require.NoError(t, sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error { return nil }))

	assert.Equal(t, []string{"carol"}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)
	assert.Equal(t, time.Second, locker.ttl)
}

func TestDo_LockFailure(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(session.WithLocker(&recordingLocker{err: errors.New("redis down")}))
	sess, err := store.GetOrCreate(ctx, "dave")
	require.NoError(t, err)

	ran := false
	err = sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		ran = true
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
	assert.False(t, ran)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore()
	_, err := store.GetOrCreate(ctx, "erin")
	require.NoError(t, err)

	store.Release()
	assert.Equal(t, 0, store.Len())

	_, err = store.GetOrCreate(ctx, "erin")
	var illegal *domain.IllegalStateError
	assert.ErrorAs(t, err, &illegal)
	assert.ErrorIs(t, err, domain.ErrAlreadyShutdown)
}

// slowStore simulates I/O latency to provoke races if creation is not serialized.
type slowStore struct {
	delay time.Duration
	mu    sync.Mutex
	data  map[string]*domain.SessionSnapshot
}

func (s *slowStore) Save(ctx context.Context, id string, snap *domain.SessionSnapshot) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]*domain.SessionSnapshot)
	}
	s.data[id] = snap.Clone()
	return nil
}

func (s *slowStore) Load(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.data[id]; ok {
		return snap.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *slowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *slowStore) List(ctx context.Context) ([]string, error) { return nil, nil }

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked int
	ttl      time.Duration
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.ttl = ttl
	l.mu.Unlock()
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked++
		return nil
	}, nil
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	require.NoError(t, backing.Save(ctx, "stored", domain.NewSnapshot("", "Done")))

	store := session.NewStore(session.WithStateStore(backing))
	_, err := store.GetOrCreate(ctx, "live")
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, domain.InitState, snap.State)

	snap, err = store.Snapshot(ctx, "stored")
	require.NoError(t, err)
	assert.Equal(t, "stored", snap.ID)
	assert.Equal(t, "Done", snap.State)
	assert.Equal(t, 1, store.Len(), "Snapshot must not load sessions")

	_, err = store.Snapshot(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDo_RefreshFailureAborts(t *testing.T) {
	ctx := context.Background()
	backing := &faultyStore{StateStore: memory.NewStore()}
	locker := &recordingLocker{}

	replicaA := session.NewStore(session.WithStateStore(backing), session.WithLocker(locker))
	replicaB := session.NewStore(session.WithStateStore(backing), session.WithLocker(locker))

	a, err := replicaA.GetOrCreate(ctx, "order-7")
	require.NoError(t, err)
	b, err := replicaB.GetOrCreate(ctx, "order-7")
	require.NoError(t, err)

	require.NoError(t, b.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.SetState("Paid")
		tx.Set("order", 42)
		return nil
	}))

	backing.loadErr = errors.New("redis timeout")
	ran := false
	err = a.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		ran = true
		tx.Set("note", "x")
		return nil
	})
	assert.ErrorContains(t, err, "redis timeout")
	assert.False(t, ran, "a turn must not run on a snapshot that could not be reloaded")
	assert.Equal(t, 2, locker.unlocked, "the lock is released when the reload fails")

	backing.loadErr = nil
	saved, err := backing.Load(ctx, "order-7")
	require.NoError(t, err)
	assert.Equal(t, "Paid", saved.State)
	assert.Equal(t, 42, saved.Context["order"])
	assert.NotContains(t, saved.Context, "note")
}

func TestDo_SaveFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	backing := &faultyStore{StateStore: memory.NewStore()}
	store := session.NewStore(session.WithStateStore(backing))

	sess, err := store.GetOrCreate(ctx, "frank")
	require.NoError(t, err)

	backing.saveErr = errors.New("disk full")
	err = sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.SetState("Paid")
		tx.Bind("receipt", "r-1")
		assert.Equal(t, "Paid", tx.CurrentState(), "a unit of work sees its own writes")
		return nil
	})
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, domain.InitState, sess.CurrentState())
	_, ok := sess.Get("receipt")
	assert.False(t, ok)
	assert.Empty(t, sess.Snapshot().ReturnVariables)

	backing.saveErr = nil
	require.NoError(t, sess.Do(ctx, func(ctx context.Context, tx *session.Tx) error {
		tx.SetState("Paid")
		return nil
	}))
	assert.Equal(t, "Paid", sess.CurrentState())
}

// faultyStore fails Load or Save on demand.
type faultyStore struct {
	ports.StateStore
	loadErr error
	saveErr error
}

func (s *faultyStore) Load(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.StateStore.Load(ctx, id)
}

func (s *faultyStore) Save(ctx context.Context, id string, snap *domain.SessionSnapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.StateStore.Save(ctx, id, snap)
}
