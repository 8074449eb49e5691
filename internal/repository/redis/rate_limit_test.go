package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newAttemptStore(t *testing.T, cfg AttemptStoreConfig) (*AttemptStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewAttemptStore(client, cfg), mr
}

func TestAttemptStore_SlidingWindow(t *testing.T) {
	store, _ := newAttemptStore(t, AttemptStoreConfig{KeyPrefix: "attempts", TTL: time.Hour})
	ctx := context.Background()

	now := time.Now()
	window := time.Minute

	for _, offset := range []time.Duration{-90 * time.Second, -30 * time.Second, -10 * time.Second} {
		if err := store.RecordAttempt(ctx, "login:jane@example.com", now.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "login:jane@example.com", window, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts inside the window, got %d", count)
	}

	// Another identifier is isolated.
	count, err = store.CountAttempts(ctx, "login:other@example.com", window, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts for untouched identifier, got %d", count)
	}
}

func TestAttemptStore_TrimWindow(t *testing.T) {
	store, _ := newAttemptStore(t, AttemptStoreConfig{KeyPrefix: "attempts"})
	ctx := context.Background()

	now := time.Now()
	for _, offset := range []time.Duration{-5 * time.Minute, -3 * time.Minute, -10 * time.Second} {
		if err := store.RecordAttempt(ctx, "id", now.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	if err := store.TrimWindow(ctx, "id", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow: %v", err)
	}

	count, err := store.CountAttempts(ctx, "id", time.Hour, now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt to survive the trim, got %d", count)
	}
}

func TestAttemptStore_OldestAttempt(t *testing.T) {
	store, _ := newAttemptStore(t, AttemptStoreConfig{KeyPrefix: "attempts"})
	ctx := context.Background()

	now := time.Now()

	_, found, err := store.OldestAttempt(ctx, "id", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt: %v", err)
	}
	if found {
		t.Fatal("expected no attempt for an empty identifier")
	}

	oldest := now.Add(-40 * time.Second)
	for _, at := range []time.Time{oldest, now.Add(-20 * time.Second), now.Add(-5 * time.Second)} {
		if err := store.RecordAttempt(ctx, "id", at); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, found, err := store.OldestAttempt(ctx, "id", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt: %v", err)
	}
	if !found {
		t.Fatal("expected an attempt inside the window")
	}
	if delta := got.Sub(oldest); delta < -time.Second || delta > time.Second {
		t.Fatalf("expected oldest attempt near %v, got %v", oldest, got)
	}
}

func TestAttemptStore_KeyTTL(t *testing.T) {
	store, mr := newAttemptStore(t, AttemptStoreConfig{KeyPrefix: "attempts", TTL: 2 * time.Minute})
	ctx := context.Background()

	if err := store.RecordAttempt(ctx, "id", time.Now()); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	ttl := mr.TTL("attempts:id")
	if ttl <= 0 || ttl > 2*time.Minute {
		t.Fatalf("expected a bounded key TTL, got %v", ttl)
	}

	mr.FastForward(3 * time.Minute)
	if mr.Exists("attempts:id") {
		t.Fatal("expected the key to expire after the TTL")
	}
}

func TestAttemptStore_RejectsNonPositiveWindow(t *testing.T) {
	store, _ := newAttemptStore(t, AttemptStoreConfig{})
	ctx := context.Background()

	if _, err := store.CountAttempts(ctx, "id", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
	if err := store.TrimWindow(ctx, "id", -time.Second, time.Now()); err == nil {
		t.Fatal("expected error for negative window")
	}
	if _, _, err := store.OldestAttempt(ctx, "id", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
}
