package session

import (
	"context"
	"sync"
	"time"
)

// Store owns conversation sessions. Get creates a fresh session on first use or
// after expiry; every accessor refreshes LastActivity.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Update applies fn to the stored session and returns the result.
	Update(ctx context.Context, id string, fn func(*Session)) (*Session, error)
	AppendMessage(ctx context.Context, id, role, text string) error
	End(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that must evict expired sessions themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// IsExpired reports whether the session has been idle longer than timeout.
func IsExpired(s *Session, now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
	onExpire func(*Session)
}

func NewMemoryStore(timeout time.Duration, now func() time.Time) *MemoryStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      now,
	}
}

// SetExpireHook registers a callback run after a session is evicted by Sweep.
func (m *MemoryStore) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// live returns the stored session, replacing it when missing or expired. Caller holds mu.
func (m *MemoryStore) live(id string, now time.Time) *Session {
	s, ok := m.sessions[id]
	if !ok || IsExpired(s, now, m.timeout) {
		s = newSession(id, now)
		m.sessions[id] = s
	}
	s.LastActivity = now
	return s
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(id, m.now()).Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Session)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := m.live(id, now)
	fn(s)
	s.ID = id
	s.LastActivity = now
	return s.Clone(), nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, id, role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.live(id, now).appendMessage(role, text, now)
	return nil
}

func (m *MemoryStore) End(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Peek returns a copy without creating or refreshing the session.
func (m *MemoryStore) Peek(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || IsExpired(s, m.now(), m.timeout) {
		return nil, false
	}
	return s.Clone(), true
}

// Len counts stored sessions, expired ones included until the next sweep.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts every expired session.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if IsExpired(s, now, m.timeout) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
	return len(expired), nil
}

// Inspector reads a session without creating or refreshing it.
type Inspector interface {
	Lookup(ctx context.Context, id string) (*Session, error)
}

// Lookup is Peek for callers that only know the Inspector interface.
func (m *MemoryStore) Lookup(_ context.Context, id string) (*Session, error) {
	s, ok := m.Peek(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}
