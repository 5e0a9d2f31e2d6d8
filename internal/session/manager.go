package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

type ManagerOptions struct {
	Options
	OnExpire func(key string)
	OnReset  func(key string)
}

// Manager owns one Timer per live session key for the HTTP layer.
type Manager struct {
	persist Persistence
	opts    ManagerOptions

	mu     sync.Mutex
	timers map[string]*Timer
}

func NewManager(persist Persistence, opts ManagerOptions) *Manager {
	return &Manager{
		persist: persist,
		opts:    opts,
		timers:  make(map[string]*Timer),
	}
}

// Open resumes key or starts a new session. An empty key, or one whose
// session has expired, gets a fresh session.
func (m *Manager) Open(ctx context.Context, key, tableID string) (*Timer, error) {
	if key == "" {
		key = uuid.NewString()
	}

	m.mu.Lock()
	existing, ok := m.timers[key]
	m.mu.Unlock()
	if ok {
		if !existing.Expired() {
			return existing, nil
		}
		m.drop(key, existing)
		key = uuid.NewString()
	}

	t, err := m.start(ctx, key, tableID)
	if err != nil {
		return nil, err
	}
	if t.Expired() {
		m.drop(key, t)
		return m.start(ctx, uuid.NewString(), tableID)
	}
	return t, nil
}

// Get returns the live timer for key, resuming it from persistence when this
// process has not seen it yet.
func (m *Manager) Get(ctx context.Context, key string) (*Timer, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	t, ok := m.timers[key]
	m.mu.Unlock()

	if !ok {
		_, found, err := m.persist.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		if t, err = m.start(ctx, key, ""); err != nil {
			return nil, err
		}
	}
	if t.Expired() {
		return t, ErrExpired
	}
	return t, nil
}

// End stops the session and forgets it.
func (m *Manager) End(ctx context.Context, key string) error {
	m.mu.Lock()
	t, ok := m.timers[key]
	delete(m.timers, key)
	m.mu.Unlock()
	if ok {
		t.Stop()
	}
	return m.persist.Clear(ctx, key)
}

// Close stops every timer without clearing persistence, so sessions resume
// after a restart.
func (m *Manager) Close() {
	m.mu.Lock()
	timers := m.timers
	m.timers = make(map[string]*Timer)
	m.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

func (m *Manager) start(ctx context.Context, key, tableID string) (*Timer, error) {
	opts := m.opts.Options
	opts.OnExpire = func() {
		if m.opts.OnExpire != nil {
			m.opts.OnExpire(key)
		}
	}
	opts.OnReset = func() {
		m.mu.Lock()
		if cur, ok := m.timers[key]; ok && cur.Expired() {
			delete(m.timers, key)
		}
		m.mu.Unlock()
		if m.opts.OnReset != nil {
			m.opts.OnReset(key)
		}
	}

	if cur, ok := m.live(key); ok {
		return cur, nil
	}

	// Start talks to persistence and may run the expiry callbacks, so it
	// runs without m.mu held.
	t, err := Start(ctx, key, tableID, m.persist, opts)
	if err != nil {
		log.Printf("[SESSION] [ERROR] starting session %s: %v", key, err)
		return nil, err
	}

	m.mu.Lock()
	if cur, ok := m.timers[key]; ok && !cur.Expired() {
		m.mu.Unlock()
		t.Stop()
		return cur, nil
	}
	m.timers[key] = t
	m.mu.Unlock()
	return t, nil
}

func (m *Manager) live(key string) (*Timer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.timers[key]
	if !ok || cur.Expired() {
		return nil, false
	}
	return cur, true
}

func (m *Manager) drop(key string, t *Timer) {
	t.Stop()
	m.mu.Lock()
	if cur, ok := m.timers[key]; ok && cur == t {
		delete(m.timers, key)
	}
	m.mu.Unlock()
}
