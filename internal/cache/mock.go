package cache

import (
	"context"
	"sync"
	"time"
)

// MockCache is a map-backed ScoreCache for tests. TTLs are ignored.
type MockCache struct {
	mu      sync.Mutex
	Data    map[string]string
	Deletes []string
}

// NewMockCache initializes an empty mock cache.
func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string]string)}
}

func (m *MockCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
	return nil
}

func (m *MockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	m.Deletes = append(m.Deletes, key)
	return nil
}
