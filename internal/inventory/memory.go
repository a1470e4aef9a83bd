package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process container. Capacity 0 means unbounded; otherwise it
// caps the total number of units across all tags.
type Memory struct {
	mu       sync.Mutex
	units    map[string]int64
	capacity int64
}

// NewMemory returns an empty unbounded container
func NewMemory() *Memory {
	return &Memory{units: make(map[string]int64)}
}

// NewBoundedMemory returns an empty container holding at most capacity units
func NewBoundedMemory(capacity int64) *Memory {
	m := NewMemory()
	m.capacity = capacity
	return m
}

// Set overwrites the count held for tag
func (m *Memory) Set(tag string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count <= 0 {
		delete(m.units, tag)
		return
	}
	m.units[tag] = count
}

// Snapshot copies the current contents
func (m *Memory) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.units))
	for k, v := range m.units {
		out[k] = v
	}
	return out
}

func (m *Memory) CountUnitsOf(_ context.Context, tag string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[tag], nil
}

func (m *Memory) RemoveUnits(_ context.Context, tag string, count int64) error {
	if count < 0 {
		return fmt.Errorf("remove %d of %s: negative count", count, tag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.units[tag]
	if held < count {
		return fmt.Errorf("remove %d of %s, holding %d: %w", count, tag, held, ErrNotEnoughUnits)
	}
	if held == count {
		delete(m.units, tag)
	} else {
		m.units[tag] = held - count
	}
	return nil
}

func (m *Memory) DepositUnits(_ context.Context, tag string, count int64) error {
	if count < 0 {
		return fmt.Errorf("deposit %d of %s: negative count", count, tag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity > 0 && m.total()+count > m.capacity {
		return fmt.Errorf("deposit %d of %s: %w", count, tag, ErrNoSpace)
	}
	if count > 0 {
		m.units[tag] += count
	}
	return nil
}

// FreeSpaceFor implements Bounded; unbounded containers report -1
func (m *Memory) FreeSpaceFor(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity <= 0 {
		return -1, nil
	}
	return m.capacity - m.total(), nil
}

func (m *Memory) total() int64 {
	var n int64
	for _, c := range m.units {
		n += c
	}
	return n
}
