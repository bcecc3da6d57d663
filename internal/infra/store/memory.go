package store

import (
	"sync"

	"xtrack-client/internal/domain"
)

var _ domain.StateStore = (*MemoryStore)(nil)

// MemoryStore — эфемерный уровень локального состояния. Живёт только в
// пределах одного процесса, как sessionStorage в браузере.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory создаёт пустое эфемерное хранилище.
func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get возвращает значение по ключу.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, true, nil
}

// Set записывает значение.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	s.values[key] = copied
	return nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
