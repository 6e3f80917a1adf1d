package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
)

// Store is the only owner of the scope's session. It keeps an in-memory copy
// hydrated once from durable slots, and every write goes to the slots first so
// that memory never holds a state the slots do not.
//
// Reads never block on I/O. Writes (SetSession, Clear) are serialized with each
// other and with reads of both fields, so a partial session is never observable.
type Store struct {
	slots     SlotStore
	validator credential.Validator
	logger    *slog.Logger

	mu         sync.RWMutex
	credential string
	principal  Principal
	tag        string

	hooksMu sync.Mutex
	onClear []func()
}

// NewStore creates a Store and hydrates it from slots. A partial slot set
// (credential without principal or the reverse) is treated as no session and
// the stray slot is removed.
func NewStore(ctx context.Context, slots SlotStore, validator credential.Validator, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		slots:     slots,
		validator: validator,
		logger:    logger,
	}

	loaded, err := slots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}

	switch {
	case loaded.Complete():
		s.credential = loaded.Credential
		s.principal = Principal(loaded.Principal).Clone()
		logger.Debug("session hydrated", "credential_fp", credential.Fingerprint(loaded.Credential))
	case !loaded.Empty():
		logger.Warn("discarding partial session found in storage")
		if err := slots.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear partial session: %w", err)
		}
	}

	return s, nil
}

// SetSession replaces the session with cred and principal. It returns false and
// changes nothing when either is missing or the durable write fails.
func (s *Store) SetSession(ctx context.Context, cred string, principal Principal) bool {
	if cred == "" || principal.IsZero() {
		s.logger.Warn("refusing to set session: credential or principal missing",
			"has_credential", cred != "",
			"has_principal", !principal.IsZero(),
		)
		return false
	}

	principal = principal.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.slots.Save(ctx, Slots{Credential: cred, Principal: principal}); err != nil {
		s.logger.Error("failed to persist session", "error", err)
		return false
	}

	s.credential = cred
	s.principal = principal
	if s.tag == "" {
		s.tag = uuid.NewString()
	}

	s.logger.Info("session established",
		"session_tag", s.tag,
		"credential_fp", credential.Fingerprint(cred),
	)
	return true
}

// Credential returns the cached credential, or "" when there is no session.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Principal returns a copy of the cached principal, or nil when there is no session.
func (s *Store) Principal() Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal.Clone()
}

// Tag returns the correlation tag, or "" before the first SetSession.
// The tag survives Clear and lives as long as the Store.
func (s *Store) Tag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tag
}

// Snapshot returns both fields read together, and whether the session is authenticated.
func (s *Store) Snapshot() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Session{
		Credential: s.credential,
		Principal:  s.principal.Clone(),
		Tag:        s.tag,
	}
	return snap, s.authenticatedLocked()
}

// IsAuthenticated reports whether a credential and principal are both present
// and the credential is structurally valid. It is evaluated on every call; the
// answer is only meaningful until the caller's next blocking operation.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

func (s *Store) authenticatedLocked() bool {
	return s.credential != "" && !s.principal.IsZero() && s.validator.IsStructurallyValid(s.credential)
}

// Clear removes the session from the slots and from memory. Clearing an empty
// store is a no-op. Hooks registered with OnClear run after a non-empty session
// is removed, outside the store lock.
func (s *Store) Clear(ctx context.Context) {
	s.clear(ctx, "")
}

// ClearIfCurrent clears the session only while it still holds cred, checked
// and cleared under one lock. It returns false, changing nothing, when cred
// is empty or the session has since been cleared or replaced.
func (s *Store) ClearIfCurrent(ctx context.Context, cred string) bool {
	if cred == "" {
		return false
	}
	return s.clear(ctx, cred)
}

// clear removes the session. A non-empty want must match the stored credential.
func (s *Store) clear(ctx context.Context, want string) bool {
	s.mu.Lock()
	if want != "" && s.credential != want {
		s.mu.Unlock()
		return false
	}
	hadSession := s.credential != "" || !s.principal.IsZero()
	s.credential = ""
	s.principal = nil
	if err := s.slots.Clear(ctx); err != nil {
		// Memory is cleared regardless so this process stops using the credential.
		s.logger.Error("failed to clear persisted session", "error", err)
	}
	tag := s.tag
	s.mu.Unlock()

	if !hadSession {
		return true
	}

	s.logger.Info("session cleared", "session_tag", tag)

	s.hooksMu.Lock()
	hooks := make([]func(), len(s.onClear))
	copy(hooks, s.onClear)
	s.hooksMu.Unlock()

	for _, h := range hooks {
		h()
	}
	return true
}

// OnClear registers fn to run each time a session is cleared.
func (s *Store) OnClear(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onClear = append(s.onClear, fn)
}
