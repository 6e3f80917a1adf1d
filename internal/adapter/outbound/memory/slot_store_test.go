package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

func TestSlotStore_SaveLoadClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSlotStore()

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("Load() on new store = %+v, want empty", got)
	}

	want := session.Slots{Credential: "abcdefghijk", Principal: []byte(`{"id":1}`)}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, _ = store.Load(ctx)
	if got.Credential != want.Credential || string(got.Principal) != string(want.Principal) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
	got, _ = store.Load(ctx)
	if !got.Empty() {
		t.Errorf("Load() after Clear = %+v, want empty", got)
	}
}

func TestSlotStore_RejectsPartialSave(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	err := store.Save(context.Background(), session.Slots{Credential: "abcdefghijk"})
	if !errors.Is(err, session.ErrIncompleteSlots) {
		t.Errorf("Save(partial) error = %v, want ErrIncompleteSlots", err)
	}
}

func TestSlotStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSlotStore()
	principal := []byte(`{"id":1}`)
	_ = store.Save(ctx, session.Slots{Credential: "abcdefghijk", Principal: principal})

	principal[2] = 'X'
	got, _ := store.Load(ctx)
	got.Principal[3] = 'Y'

	again, _ := store.Load(ctx)
	if string(again.Principal) != `{"id":1}` {
		t.Errorf("stored principal mutated: %s", again.Principal)
	}
}
