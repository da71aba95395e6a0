package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager serializes turns per session and enforces tenant ownership. A
// session owned by another tenant is reported as ErrNotFound.
type Manager struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		locks: map[string]*sessionLock{},
	}
}

func (m *Manager) Create(ctx context.Context, tenantID string) (*Session, error) {
	s := New(tenantID, m.now())
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (m *Manager) Get(ctx context.Context, tenantID, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes the session and returns its last stored state.
func (m *Manager) Delete(ctx context.Context, tenantID, id string) (*Session, error) {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// WithSession runs fn on a freshly loaded copy of the session while holding
// the session's turn lock. The copy is saved only when fn succeeds; on error
// the stored session is left as it was.
func (m *Manager) WithSession(ctx context.Context, tenantID, id string, fn func(*Session) error) (*Session, error) {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := m.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (m *Manager) acquire(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sessionLock{sem: make(chan struct{}, 1)}
		m.locks[id] = lock
	}
	lock.refs++
	m.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			m.releaseRef(id, lock)
		}, nil
	case <-ctx.Done():
		m.releaseRef(id, lock)
		return nil, ctx.Err()
	}
}

func (m *Manager) releaseRef(id string, lock *sessionLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, id)
	}
}
