package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

func newTestStore(t *testing.T, scope string, ttl time.Duration) (*SlotStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := New(client, "sg", scope, ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestSlotStore_SaveLoadClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t, "tab-1", 0)

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !empty.Empty() {
		t.Fatalf("Load() on empty server = %+v", empty)
	}

	want := session.Slots{Credential: "abcdefghijk", Principal: []byte(`{"id":1}`)}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if got, _ := mr.Get("sg:tab-1:authToken"); got != "abcdefghijk" {
		t.Errorf("credential key = %q", got)
	}
	if got, _ := mr.Get("sg:tab-1:adminUser"); got != `{"id":1}` {
		t.Errorf("principal key = %q", got)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Credential != want.Credential || string(got.Principal) != string(want.Principal) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
	if mr.Exists("sg:tab-1:authToken") || mr.Exists("sg:tab-1:adminUser") {
		t.Error("keys still present after Clear")
	}
}

func TestSlotStore_TTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t, "tab-ttl", time.Minute)

	if err := store.Save(ctx, session.Slots{Credential: "abcdefghijk", Principal: []byte(`{}`)}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if ttl := mr.TTL("sg:tab-ttl:authToken"); ttl != time.Minute {
		t.Errorf("credential TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	got, _ := store.Load(ctx)
	if !got.Empty() {
		t.Errorf("Load() after expiry = %+v, want empty", got)
	}
}

func TestSlotStore_PartialKeysLoadAsPartial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t, "tab-2", 0)
	_ = mr.Set("sg:tab-2:authToken", "abcdefghijk")

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Complete() || got.Empty() {
		t.Errorf("Load() = %+v, want credential-only slots", got)
	}
}

func TestSlotStore_ScopesAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	a := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", "a", 0)
	b := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", "b", 0)
	defer a.Close()
	defer b.Close()

	_ = a.Save(ctx, session.Slots{Credential: "abcdefghijk", Principal: []byte(`{}`)})
	got, _ := b.Load(ctx)
	if !got.Empty() {
		t.Errorf("scope b sees scope a's session: %+v", got)
	}
	if !mr.Exists(DefaultPrefix + ":a:authToken") {
		t.Error("default prefix not applied")
	}
}

func TestSlotStore_RejectsPartialSave(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, "tab-3", 0)
	err := store.Save(context.Background(), session.Slots{Principal: []byte(`{}`)})
	if !errors.Is(err, session.ErrIncompleteSlots) {
		t.Errorf("Save(partial) error = %v, want ErrIncompleteSlots", err)
	}
}

func TestSlotStore_ServerDown(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t, "tab-4", 0)
	mr.Close()

	if _, err := store.Load(context.Background()); err == nil {
		t.Error("Load() should fail when redis is unreachable")
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail when redis is unreachable")
	}
}
