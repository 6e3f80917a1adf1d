// Package directory holds the records served by the development authority:
// login users and opaque resource collections.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors returned by directory stores.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrRecordNotFound = errors.New("record not found")
)

// User is an account the authority can log in.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// PasswordHash is an argon2id encoded hash. Never serialized.
	PasswordHash string `json:"-"`
}

// Record is one opaque entry of a resource collection.
type Record struct {
	ID        string
	Body      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore looks users up by login email.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Add(ctx context.Context, u *User) error
}

// CollectionStore persists opaque records grouped by collection name.
type CollectionStore interface {
	List(ctx context.Context, collection string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (*Record, error)
	Add(ctx context.Context, collection string, r *Record) error
	Update(ctx context.Context, collection string, r *Record) error
	Delete(ctx context.Context, collection, id string) error
}
