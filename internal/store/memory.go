package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Store. Nothing survives Close.
type Memory struct {
	mu   sync.Mutex
	sets map[string][]string
}

func NewMemory() *Memory {
	return &Memory{sets: make(map[string][]string)}
}

func (m *Memory) Members(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sets[key]), nil
}

func (m *Memory) Add(_ context.Context, key, member string) (bool, error) {
	if err := checkArgs(key, member); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.sets[key], member) {
		return false, nil
	}
	m.sets[key] = append(m.sets[key], member)
	return true, nil
}

func (m *Memory) Remove(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.sets[key], member)
	if i < 0 {
		return false, nil
	}
	m.sets[key] = slices.Delete(m.sets[key], i, i+1)
	return true, nil
}

func (m *Memory) Contains(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.sets[key], member), nil
}

func (m *Memory) Close() error { return nil }
