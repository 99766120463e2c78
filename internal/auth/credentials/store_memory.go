package credentials

import "sync"

// MemStore keeps the bundle in memory, for tests and ephemeral sessions.
type MemStore struct {
	mu     sync.RWMutex
	bundle Bundle
}

// NewMemStore constructs an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle, nil
}

func (s *MemStore) Save(in Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = s.bundle.merge(in)
	return nil
}

func (s *MemStore) Replace(in Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = in
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = Bundle{}
	return nil
}
