package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and as a scratch backend.
type Memory struct {
	mu   sync.Mutex
	data map[string]string

	// WriteErr, when set, is returned by every Set call (a full disk or an
	// exceeded quota).
	WriteErr error
	// Writes counts successful Set calls.
	Writes int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the document stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores the document under key, or returns WriteErr if set.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data[key] = value
	m.Writes++
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
