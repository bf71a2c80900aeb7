package store

import "sync"

// Selection is the "currently open conversation" cell. The realtime handler
// consults it at event time instead of a value captured at subscription
// time, so a long-lived handler never acts on a stale selection.
type Selection struct {
	mu      sync.RWMutex
	partner string
}

// Set marks a partner's conversation as open.
func (s *Selection) Set(partnerID string) {
	s.mu.Lock()
	s.partner = partnerID
	s.mu.Unlock()
}

// Clear marks no conversation as open.
func (s *Selection) Clear() {
	s.Set("")
}

// Get returns the open partner id, or "" when no conversation is open.
func (s *Selection) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partner
}

// IsOpen reports whether the given partner's conversation is the open one.
func (s *Selection) IsOpen(partnerID string) bool {
	return partnerID != "" && s.Get() == partnerID
}
