package persist

import (
	"context"
	"slices"
	"sync"
)

// MemorySlots keeps slots in process memory. It outlives caches, not the process; useful for tests and for
// recreating a cache with the same name.
type MemorySlots struct {
	mux   sync.RWMutex
	slots map[string][]byte
}

var _ SlotStore = (*MemorySlots)(nil)

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string][]byte)}
}

func (m *MemorySlots) GetSlot(_ context.Context, name string) ([]byte, bool, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	data, found := m.slots[name]
	return slices.Clone(data), found, nil
}

func (m *MemorySlots) SetSlot(_ context.Context, name string, data []byte) error {
	if name == "" {
		return ErrEmptySlotName
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.slots[name] = slices.Clone(data)
	return nil
}

func (m *MemorySlots) RemoveSlot(_ context.Context, name string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.slots, name)
	return nil
}

// Len returns the number of stored slots.
func (m *MemorySlots) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.slots)
}
