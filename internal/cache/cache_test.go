package cache

import (
	"context"
	"testing"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, ok, err := c.Get(ctx, 1); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, 1, 1700000000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ts, ok, err := c.Get(ctx, 1)
	if err != nil || !ok || ts != 1700000000 {
		t.Errorf("expected hit 1700000000, got %d ok=%v err=%v", ts, ok, err)
	}

	if err := c.Set(ctx, 1, 1700000001); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}
