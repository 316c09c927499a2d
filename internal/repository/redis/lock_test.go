package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAcquireLock_Exclusive(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewRedisExecutionLock(client, time.Minute)
	other := NewRedisExecutionLock(client, time.Minute)
	ctx := context.Background()
	docID := uuid.New()

	ok, err := lock.AcquireLock(ctx, docID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = other.AcquireLock(ctx, docID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be rejected")
	}

	// A different document is independent.
	ok, _ = other.AcquireLock(ctx, uuid.New())
	if !ok {
		t.Error("expected lock on another document to succeed")
	}
}

func TestReleaseLock_AllowsReacquire(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewRedisExecutionLock(client, time.Minute)
	ctx := context.Background()
	docID := uuid.New()

	if ok, _ := lock.AcquireLock(ctx, docID); !ok {
		t.Fatal("expected acquire")
	}
	if err := lock.ReleaseLock(ctx, docID); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if ok, _ := lock.AcquireLock(ctx, docID); !ok {
		t.Error("expected reacquire after release")
	}
}

func TestReleaseLock_DoesNotStealForeignLock(t *testing.T) {
	_, client := newTestClient(t)
	owner := NewRedisExecutionLock(client, time.Minute)
	stranger := NewRedisExecutionLock(client, time.Minute)
	ctx := context.Background()
	docID := uuid.New()

	if ok, _ := owner.AcquireLock(ctx, docID); !ok {
		t.Fatal("expected acquire")
	}

	// stranger never acquired the lock; releasing must not delete it.
	if err := stranger.ReleaseLock(ctx, docID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := stranger.AcquireLock(ctx, docID); ok {
		t.Error("foreign release removed the owner's lock")
	}
}

func TestAcquireLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := newTestClient(t)
	lock := NewRedisExecutionLock(client, 5*time.Second)
	ctx := context.Background()
	docID := uuid.New()

	if ok, _ := lock.AcquireLock(ctx, docID); !ok {
		t.Fatal("expected acquire")
	}

	mr.FastForward(6 * time.Second)

	other := NewRedisExecutionLock(client, 5*time.Second)
	if ok, _ := other.AcquireLock(ctx, docID); !ok {
		t.Error("expected lock to expire after TTL")
	}
}

func TestAcquireLock_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	lock := NewRedisExecutionLock(client, time.Minute)
	mr.Close()

	if _, err := lock.AcquireLock(context.Background(), uuid.New()); err == nil {
		t.Error("expected error when redis is unreachable")
	}
}
