package memory

import (
	"context"
	"sync"
)

// FlagStore is a process-local ports.FlagStore. It backs tests and
// single-instance deployments without Valkey.
type FlagStore struct {
	mu    sync.RWMutex
	flags map[string]map[string]string
}

// NewFlagStore creates an empty FlagStore.
func NewFlagStore() *FlagStore {
	return &FlagStore{flags: make(map[string]map[string]string)}
}

func (s *FlagStore) GetFlag(_ context.Context, clientID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[clientID][key]
	return v, ok, nil
}

func (s *FlagStore) SetFlag(_ context.Context, clientID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[clientID] == nil {
		s.flags[clientID] = make(map[string]string)
	}
	s.flags[clientID][key] = value
	return nil
}
