// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// SlotStore implements session.SlotStore with a mutex-guarded pair of slots.
// Its lifetime is the process, which makes it the scope-local default driver.
type SlotStore struct {
	mu    sync.RWMutex
	slots session.Slots
}

// NewSlotStore creates an empty in-memory slot store.
func NewSlotStore() *SlotStore {
	return &SlotStore{}
}

// Load returns a copy of the stored slots.
func (s *SlotStore) Load(ctx context.Context) (session.Slots, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlots(s.slots), nil
}

// Save replaces both slots.
func (s *SlotStore) Save(ctx context.Context, slots session.Slots) error {
	if !slots.Complete() {
		return session.ErrIncompleteSlots
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	s.slots = copySlots(slots)
	return nil
}

// Clear empties both slots.
func (s *SlotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = session.Slots{}
	return nil
}

func copySlots(in session.Slots) session.Slots {
	out := session.Slots{Credential: in.Credential}
	if in.Principal != nil {
		out.Principal = make([]byte, len(in.Principal))
		copy(out.Principal, in.Principal)
	}
	return out
}

// Compile-time interface verification.
var _ session.SlotStore = (*SlotStore)(nil)
