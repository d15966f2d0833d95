package service

import (
	"context"
	"errors"
	"testing"
)

func TestKeyRegistry_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("issues active key", func(t *testing.T) {
		reg := NewKeyRegistry(newFaultyStore(), 10)

		key, err := reg.Issue(ctx, "192.0.2.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(key.Key) != 10 {
			t.Errorf("expected 10-char key, got %q", key.Key)
		}
		if !key.Active {
			t.Error("expected key to be active")
		}
		if key.SourceAddress != "192.0.2.1" {
			t.Errorf("expected source address to be recorded, got %q", key.SourceAddress)
		}
		if key.CreatedAt.IsZero() {
			t.Error("expected creation time to be set")
		}

		active, err := reg.IsActive(ctx, key.Key)
		if err != nil || !active {
			t.Errorf("expected issued key to be active, got %v, %v", active, err)
		}
	})

	t.Run("issued keys are unique", func(t *testing.T) {
		reg := NewKeyRegistry(newFaultyStore(), 10)
		seen := make(map[string]bool)

		for i := 0; i < 10000; i++ {
			key, err := reg.Issue(ctx, "192.0.2.1")
			if err != nil {
				t.Fatalf("unexpected error at %d: %v", i, err)
			}
			if seen[key.Key] {
				t.Fatalf("duplicate key issued: %s", key.Key)
			}
			seen[key.Key] = true
		}
	})

	t.Run("regenerates once on collision", func(t *testing.T) {
		store := newFaultyStore()
		store.duplicates = 1
		reg := NewKeyRegistry(store, 10)

		if _, err := reg.Issue(ctx, ""); err != nil {
			t.Fatalf("expected success after one collision, got %v", err)
		}
	})

	t.Run("gives up after second collision", func(t *testing.T) {
		store := newFaultyStore()
		store.duplicates = 2
		reg := NewKeyRegistry(store, 10)

		if _, err := reg.Issue(ctx, ""); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newFaultyStore()
		store.failCreateKey = errStoreDown
		reg := NewKeyRegistry(store, 10)

		_, err := reg.Issue(ctx, "")
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if !errors.Is(err, errStoreDown) {
			t.Errorf("expected cause to be preserved, got %v", err)
		}
	})
}

func TestKeyRegistry_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivates once then not found", func(t *testing.T) {
		reg := NewKeyRegistry(newFaultyStore(), 10)
		key, _ := reg.Issue(ctx, "")

		if err := reg.Deactivate(ctx, key.Key); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := reg.Deactivate(ctx, key.Key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second call, got %v", err)
		}

		active, _ := reg.IsActive(ctx, key.Key)
		if active {
			t.Error("key must never be reactivated")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		reg := NewKeyRegistry(newFaultyStore(), 10)
		if err := reg.Deactivate(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newFaultyStore()
		store.failDeactivate = errStoreDown
		reg := NewKeyRegistry(store, 10)

		if err := reg.Deactivate(ctx, "k"); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestKeyRegistry_ListActive(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	reg := NewKeyRegistry(store, 10)

	a, _ := reg.Issue(ctx, "10.0.0.1")
	b, _ := reg.Issue(ctx, "10.0.0.2")
	reg.Deactivate(ctx, a.Key)

	keys, err := reg.ListActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != b.Key {
		t.Fatalf("expected only %s, got %v", b.Key, keys)
	}
}

func TestKeyRegistry_IsActive_StoreFailure(t *testing.T) {
	store := newFaultyStore()
	store.failIsActive = errStoreDown
	reg := NewKeyRegistry(store, 10)

	if _, err := reg.IsActive(context.Background(), "k"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
