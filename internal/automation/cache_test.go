package automation

import (
	"context"
	"testing"
)

func TestMemoryProcessedCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryProcessedCache()

	if cache.Contains(ctx, "routes.csv") {
		t.Fatalf("empty cache must not contain anything")
	}

	cache.Add(ctx, "routes.csv")
	cache.Add(ctx, "routes.csv")
	cache.Add(ctx, "other.csv")

	if !cache.Contains(ctx, "routes.csv") {
		t.Fatalf("expected routes.csv to be cached")
	}
	if got := cache.Size(ctx); got != 2 {
		t.Fatalf("expected size 2, got %d", got)
	}

	if cleared := cache.Clear(ctx); cleared != 2 {
		t.Fatalf("expected 2 cleared entries, got %d", cleared)
	}
	if cache.Contains(ctx, "routes.csv") {
		t.Fatalf("cleared cache must be empty")
	}
	if got := cache.Size(ctx); got != 0 {
		t.Fatalf("expected size 0 after clear, got %d", got)
	}
}
