package session

import (
	"context"
	"sync"
)

// MemoryStore keeps slots in process memory. Used by tests and one-shot hosts.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[Slot]string
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Slot]string, 2)}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Get returns the slot value or ErrSlotEmpty.
func (s *MemoryStore) Get(ctx context.Context, slot Slot) (string, error) {
	if err := checkSlots(slot); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.slots[slot]
	if !ok {
		return "", ErrSlotEmpty
	}
	return v, nil
}

// Set writes every slot in values under one lock.
func (s *MemoryStore) Set(ctx context.Context, values map[Slot]string) error {
	if err := checkValues(values); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.slots[k] = v
	}
	return nil
}

// Delete removes the named slots.
func (s *MemoryStore) Delete(ctx context.Context, slots ...Slot) error {
	if err := checkSlots(slots...); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range slots {
		delete(s.slots, k)
	}
	return nil
}
