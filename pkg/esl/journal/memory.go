package journal

import "sync"

// MemoryStore keeps records in memory. Useful for tests and short-lived
// tooling; records are lost on process exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.records = append(s.records, rec)
	return nil
}

// ByChannel implements Store.
func (s *MemoryStore) ByChannel(channelUUID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := []Record{}
	for _, rec := range s.records {
		if rec.ChannelUUID == channelUUID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
