// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmcleod/gatehouse/storage"
)

// Store is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", scope, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[scope]; !ok {
		s.data[scope] = make(map[string][]byte)
	}
	s.data[scope][key] = data
	return nil
}

func (s *Store) Get(scope, key string, v any) error {
	s.mu.RLock()
	data, ok := s.data[scope][key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrNotFound)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrCorrupt)
	}
	return nil
}

func (s *Store) Delete(scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[scope][key]; !ok {
		return fmt.Errorf("%s/%s: %w", scope, key, storage.ErrNotFound)
	}
	delete(s.data[scope], key)
	return nil
}
