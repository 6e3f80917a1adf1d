package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

// UserStore implements directory.UserStore with an in-memory map keyed by
// lower-cased email. Thread-safe for concurrent access. For development only.
type UserStore struct {
	users map[string]*directory.User
	mu    sync.RWMutex
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*directory.User),
	}
}

// GetByEmail retrieves a user by email, case-insensitively.
// Returns ErrUserNotFound if no user has that email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// Add stores a user, replacing any user with the same email.
func (s *UserStore) Add(ctx context.Context, u *directory.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userCopy := *u
	s.users[strings.ToLower(u.Email)] = &userCopy
	return nil
}

// Compile-time interface verification.
var _ directory.UserStore = (*UserStore)(nil)
