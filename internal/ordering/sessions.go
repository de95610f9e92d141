package ordering

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sessions maps customers to their cart sessions.
type Sessions struct {
	r *Reconciler

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// NewSessions returns an empty registry backed by r.
func NewSessions(r *Reconciler) *Sessions {
	return &Sessions{r: r, entries: make(map[string]*sessionEntry)}
}

// Get returns the customer's session, creating it on first use.
func (m *Sessions) Get(customerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[customerID]
	if !ok {
		e = &sessionEntry{session: m.r.NewSession(customerID)}
		m.entries[customerID] = e
	}
	e.lastUsed = time.Now()
	return e.session
}

// Lookup returns the customer's session without creating one.
func (m *Sessions) Lookup(customerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[customerID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// EvictIdle closes sessions unused for longer than maxIdle. Sessions with
// a submission in flight or awaiting a jeweler are kept. Session state is
// read outside the registry lock.
func (m *Sessions) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	type candidate struct {
		id    string
		entry *sessionEntry
	}
	m.mu.Lock()
	var idle []candidate
	for id, e := range m.entries {
		if !e.lastUsed.After(cutoff) {
			idle = append(idle, candidate{id: id, entry: e})
		}
	}
	m.mu.Unlock()

	var evicted []*Session
	for _, c := range idle {
		if c.entry.session.waiter.Active() {
			continue
		}
		m.mu.Lock()
		if cur, ok := m.entries[c.id]; ok && cur == c.entry && !cur.lastUsed.After(cutoff) {
			delete(m.entries, c.id)
			evicted = append(evicted, c.entry.session)
		}
		m.mu.Unlock()
	}

	for _, s := range evicted {
		s.Close()
	}
	if len(evicted) > 0 {
		m.r.log.Debug("evicted idle cart sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Close flushes and closes every session.
func (m *Sessions) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.entries))
	for id, e := range m.entries {
		all = append(all, e.session)
		delete(m.entries, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
