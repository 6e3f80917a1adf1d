package session

import (
	"context"
	"errors"
)

// Slot names used by every durable driver.
const (
	SlotCredential = "authToken"
	SlotPrincipal  = "adminUser"
)

// Slots is the durable representation of a session: the credential string and
// the JSON-serialized principal. Both set or both empty is the only valid state.
type Slots struct {
	Credential string
	Principal  []byte
}

// Empty reports whether neither slot holds a value.
func (s Slots) Empty() bool {
	return s.Credential == "" && len(s.Principal) == 0
}

// Complete reports whether both slots hold a value.
func (s Slots) Complete() bool {
	return s.Credential != "" && len(s.Principal) > 0
}

// SlotStore provides durable, scope-local storage for the two session slots.
// This interface is defined in the domain to avoid circular imports.
// Implementations: memory (default), file, redis, sqlite.
type SlotStore interface {
	// Load returns the stored slots. Missing slots come back empty, not as an error.
	Load(ctx context.Context) (Slots, error)

	// Save writes both slots in one atomic step.
	Save(ctx context.Context, slots Slots) error

	// Clear removes both slots. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// ErrIncompleteSlots is returned by drivers asked to save a partial session.
var ErrIncompleteSlots = errors.New("credential and principal must be saved together")
