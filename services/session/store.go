package session

import (
	"sync"
	"time"

	"bookline/models"
)

// Store holds per-customer conversation sessions keyed by (tenant, phone).
// Implementations must be safe for concurrent use; WithLock serializes all
// work for one key so two events for the same customer never interleave.
// The interface exists so a durable backing store can replace the in-memory
// one without touching the conversation engine.
type Store interface {
	Get(tenantID, phone string) (models.Session, bool)
	Put(s models.Session)
	Delete(tenantID, phone string)
	// All snapshots every live session. Used by the handoff router to
	// enumerate waiting customers.
	All() []models.Session
	// WithLock runs fn while holding the per-key lock. Events for different
	// keys proceed concurrently.
	WithLock(tenantID, phone string, fn func())
	// Sweep removes sessions idle longer than maxAge and returns the count.
	// Invoked by the housekeeping driver; tests call it with a fixed clock.
	Sweep(now time.Time, maxAge time.Duration) int
}

// MemoryStore is the in-process Store. Sessions are not durable across
// restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	locks    map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) Get(tenantID, phone string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[models.SessionKey(tenantID, phone)]
	return s, ok
}

func (m *MemoryStore) Put(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	m.sessions[models.SessionKey(s.TenantID, s.Phone)] = s
}

func (m *MemoryStore) Delete(tenantID, phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, models.SessionKey(tenantID, phone))
}

func (m *MemoryStore) All() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MemoryStore) WithLock(tenantID, phone string, fn func()) {
	key := models.SessionKey(tenantID, phone)

	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (m *MemoryStore) Sweep(now time.Time, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.sessions {
		last := s.LastInbound
		if s.UpdatedAt.After(last) {
			last = s.UpdatedAt
		}
		if now.Sub(last) > maxAge {
			delete(m.sessions, key)
			delete(m.locks, key)
			removed++
		}
	}
	return removed
}
