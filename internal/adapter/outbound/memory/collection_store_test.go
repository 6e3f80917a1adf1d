package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

func TestCollectionStore_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCollectionStore()
	now := time.Now().UTC()

	rec := &directory.Record{ID: "r1", Body: json.RawMessage(`{"name":"Cut"}`), CreatedAt: now, UpdatedAt: now}
	if err := store.Add(ctx, "services", rec); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got, err := store.Get(ctx, "services", "r1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got.Body) != `{"name":"Cut"}` {
		t.Errorf("Body = %s", got.Body)
	}

	upd := &directory.Record{ID: "r1", Body: json.RawMessage(`{"name":"Shave"}`), UpdatedAt: now.Add(time.Minute)}
	if err := store.Update(ctx, "services", upd); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, _ = store.Get(ctx, "services", "r1")
	if string(got.Body) != `{"name":"Shave"}` {
		t.Errorf("Body after update = %s", got.Body)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt changed on update: %v", got.CreatedAt)
	}

	if err := store.Delete(ctx, "services", "r1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, "services", "r1"); !errors.Is(err, directory.ErrRecordNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrRecordNotFound", err)
	}
}

func TestCollectionStore_CollectionsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCollectionStore()
	_ = store.Add(ctx, "services", &directory.Record{ID: "x", Body: json.RawMessage(`{}`)})

	if _, err := store.Get(ctx, "users", "x"); !errors.Is(err, directory.ErrRecordNotFound) {
		t.Errorf("record leaked across collections: %v", err)
	}
	users, _ := store.List(ctx, "users")
	if len(users) != 0 {
		t.Errorf("List(users) = %d records, want 0", len(users))
	}
}

func TestCollectionStore_ListOrderedByCreation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCollectionStore()
	base := time.Now()
	_ = store.Add(ctx, "c", &directory.Record{ID: "b", CreatedAt: base.Add(time.Second)})
	_ = store.Add(ctx, "c", &directory.Record{ID: "a", CreatedAt: base})

	list, _ := store.List(ctx, "c")
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("List() order = %+v", list)
	}
}

func TestCollectionStore_MissingRecordErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCollectionStore()

	if err := store.Update(ctx, "c", &directory.Record{ID: "nope"}); !errors.Is(err, directory.ErrRecordNotFound) {
		t.Errorf("Update() error = %v", err)
	}
	if err := store.Delete(ctx, "c", "nope"); !errors.Is(err, directory.ErrRecordNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestUserStore_GetByEmailCaseInsensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewUserStore()
	_ = store.Add(ctx, &directory.User{ID: 1, Username: "admin", Email: "Admin@Example.com", PasswordHash: "h"})

	got, err := store.GetByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if got.Username != "admin" || got.PasswordHash != "h" {
		t.Errorf("GetByEmail() = %+v", got)
	}

	if _, err := store.GetByEmail(ctx, "other@example.com"); !errors.Is(err, directory.ErrUserNotFound) {
		t.Errorf("GetByEmail(unknown) error = %v, want ErrUserNotFound", err)
	}
}
