package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, WithKeyPrefix("test:")), mr
}

func TestRedisStore_ReserveLifecycle(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key|user", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", first.State)
	}

	second, err := store.Reserve(ctx, "key|user", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if second.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %v", second.State)
	}

	if _, err := store.Reserve(ctx, "key|user", "other", fixedTime, time.Hour); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{
		Status:  http.StatusCreated,
		Headers: http.Header{"Content-Type": {"application/json"}, "Set-Cookie": {"secret"}},
		Body:    []byte(`{"id":"ord_1"}`),
	}
	if err := store.SaveResponse(ctx, "key|user", "fp", resp, fixedTime, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	replay, err := store.Reserve(ctx, "key|user", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if replay.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %v", replay.State)
	}
	if replay.Record.ResponseStatus != http.StatusCreated || string(replay.Record.ResponseBody) != `{"id":"ord_1"}` {
		t.Fatalf("unexpected stored record %+v", replay.Record)
	}
	if _, ok := replay.Record.ResponseHeaders["Set-Cookie"]; ok {
		t.Fatalf("expected Set-Cookie to be stripped")
	}
}

func TestRedisStore_ReleaseAndExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Release(ctx, "k", "fp"); err != nil {
		t.Fatalf("release: %v", err)
	}
	res, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected fresh reservation after release, got %v %v", res.State, err)
	}

	mr.FastForward(2 * time.Minute)
	res, err = store.Reserve(ctx, "k", "other-fp", fixedTime, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reusable, got %v %v", res.State, err)
	}

	if n, err := store.CleanupExpired(ctx, fixedTime, 10); err != nil || n != 0 {
		t.Fatalf("expected no-op cleanup, got %d %v", n, err)
	}
}

func TestRedisStore_PingReportsOutage(t *testing.T) {
	store, mr := newTestRedisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail after shutdown")
	}
}
