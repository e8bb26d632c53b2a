package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, ok, err := store.Get(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "T1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "T2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	token, ok, err := store.Get(ctx)
	if err != nil || !ok || token != "T2" {
		t.Fatalf("expected T2, got %q ok=%v err=%v", token, ok, err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected token cleared")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestMemoryStoreRejectsEmptyToken(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(context.Background(), "  "); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(ctx, "T"+strconv.Itoa(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = store.Get(ctx)
		}()
	}
	wg.Wait()

	token, ok, _ := store.Get(ctx)
	if !ok || token == "" {
		t.Fatal("expected a token after concurrent writes")
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedisStoreTest(t)
	store := NewRedisStore(rdb, "luxe", "sess-1", 0)

	if _, ok, err := store.Get(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "T1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	token, ok, err := store.Get(ctx)
	if err != nil || !ok || token != "T1" {
		t.Fatalf("expected T1, got %q ok=%v err=%v", token, ok, err)
	}
	if got := rdb.Get(ctx, "luxe:tok:sess-1").Val(); got != "T1" {
		t.Fatalf("unexpected raw key value %q", got)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected token cleared")
	}
}

func TestRedisStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedisStoreTest(t)
	a := NewRedisStore(rdb, "luxe", "a", 0)
	b := NewRedisStore(rdb, "luxe", "b", 0)

	if err := a.Set(ctx, "TA"); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if _, ok, _ := b.Get(ctx); ok {
		t.Fatal("session b must not see session a's token")
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("clear b: %v", err)
	}
	if token, _, _ := a.Get(ctx); token != "TA" {
		t.Fatalf("clearing b must not affect a, got %q", token)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedisStoreTest(t)
	store := NewRedisStore(rdb, "", "sess", time.Minute)

	if err := store.Set(ctx, "T1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected token to expire")
	}
}

func TestRedisStoreBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedisStoreTest(t)
	store := NewRedisStore(rdb, "luxe", "sess", 0)
	mr.Close()

	if _, _, err := store.Get(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from Get, got %v", err)
	}
	if err := store.Set(ctx, "T1"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from Set, got %v", err)
	}
}
