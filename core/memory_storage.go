package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStorage is the in-process Storage used for tests and as the default
// when no persistent backend is wired in.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]json.RawMessage)}
}

func (s *MemoryStorage) Get(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if value, ok := s.values[key]; ok {
			out[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out, nil
}

func (s *MemoryStorage) Set(_ context.Context, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("core: storage value for %q is not serializable: %w", key, err)
		}
		s.values[key] = raw
	}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}
