package correlation

import (
	"sync"
	"time"
)

// DefaultTTL is how long a sent-message correlation stays valid.
const DefaultTTL = 2 * time.Hour

// Entry links a previously sent message id to the customer it went to, so an
// inbound reply to a proactive notification is recognized as a continuation
// rather than a fresh conversation start.
type Entry struct {
	TenantID string
	Phone    string
	At       time.Time
}

// Store is the ephemeral in-process correlation map.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry
}

// NewStore creates a correlation store. ttl <= 0 uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, entries: make(map[string]Entry)}
}

// Record remembers that messageID was sent to (tenant, phone).
func (s *Store) Record(messageID, tenantID, phone string) {
	if messageID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[messageID] = Entry{TenantID: tenantID, Phone: phone, At: time.Now()}
}

// Lookup resolves a message id to its customer if the entry is still within
// the TTL.
func (s *Store) Lookup(messageID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[messageID]
	if !ok {
		return Entry{}, false
	}
	if time.Since(e.At) > s.ttl {
		delete(s.entries, messageID)
		return Entry{}, false
	}
	return e, true
}

// DropCustomer removes every entry for (tenant, phone). Called when a
// handoff session starts or ends for that customer.
func (s *Store) DropCustomer(tenantID, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.TenantID == tenantID && e.Phone == phone {
			delete(s.entries, id)
		}
	}
}

// Sweep removes entries older than the TTL relative to now and returns the
// count. Driven by the housekeeping scheduler.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.At) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
