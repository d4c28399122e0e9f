package session

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-redis/redis"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when GLOWGUARD_TEST_REDIS_ADDR is set.

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	addr := os.Getenv("GLOWGUARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GLOWGUARD_TEST_REDIS_ADDR is not set; skipping Redis integration test")
	}

	ctx := context.Background()
	ns := "test-" + ulid.Make().String()
	st, err := NewRedisStore(ctx, redis.Options{Addr: addr}, ns)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	s := New(st)
	t.Cleanup(func() {
		_ = s.Clear(context.Background())
		_ = s.Close()
	})

	if err := s.Establish(ctx, "A1", "R1"); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if err := s.ReplaceAccess(ctx, "A2"); err != nil {
		t.Fatalf("ReplaceAccess: %v", err)
	}
	toks, err := s.Tokens(ctx)
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if toks.Access != "A2" || toks.Refresh != "R1" {
		t.Fatalf("unexpected tokens: %+v", toks)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := st.Get(ctx, SlotRefresh); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
}
