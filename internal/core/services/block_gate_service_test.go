package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
)

func newTestGate(t *testing.T, cache *mockCounterStore, blocks *mockBlockStore) *BlockGateService {
	t.Helper()
	gate, err := NewBlockGateService(cache, blocks, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create block gate service: %v", err)
	}
	return gate
}

func TestBlockIP_BlocksViaCache(t *testing.T) {
	cache := newMockCounterStore()
	blocks := newMockBlockStore()
	gate := newTestGate(t, cache, blocks)
	ctx := context.Background()

	if err := gate.BlockIP(ctx, "203.0.113.7", "brute force", "admin", time.Hour); err != nil {
		t.Fatalf("unexpected error blocking ip: %v", err)
	}

	if !gate.IsIPBlocked(ctx, "203.0.113.7") {
		t.Fatal("expected ip to be blocked after BlockIP")
	}
	if ttl, ok := cache.blocks[blockCachePrefix+"203.0.113.7"]; !ok || ttl != time.Hour {
		t.Fatalf("expected cache warmed with ttl=1h, got %s (present=%t)", ttl, ok)
	}

	record, err := blocks.FindActive(ctx, "203.0.113.7")
	if err != nil || record == nil {
		t.Fatalf("expected durable record, got record=%v err=%v", record, err)
	}
	if record.BlockedUntil == nil {
		t.Fatal("expected timed block to carry an expiry")
	}
	if record.Reason != "brute force" || record.BlockedBy != "admin" {
		t.Fatalf("expected record metadata preserved, got %+v", record)
	}
}

func TestIsIPBlocked_UnknownIP(t *testing.T) {
	gate := newTestGate(t, newMockCounterStore(), newMockBlockStore())

	if gate.IsIPBlocked(context.Background(), "198.51.100.1") {
		t.Fatal("expected unknown ip to be unblocked")
	}
}

func TestIsIPBlocked_IndefiniteBlockSurvivesCacheLoss(t *testing.T) {
	cache := newMockCounterStore()
	blocks := newMockBlockStore()
	gate := newTestGate(t, cache, blocks)
	ctx := context.Background()

	blocks.records["b1"] = &domain.IPBlockRecord{
		ID:        "b1",
		IP:        "203.0.113.9",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if !gate.IsIPBlocked(ctx, "203.0.113.9") {
		t.Fatal("expected indefinite block to hold without cache entry")
	}
	if ttl, ok := cache.blocks[blockCachePrefix+"203.0.113.9"]; !ok || ttl != 0 {
		t.Fatalf("expected cache rewarmed without expiry, got %s (present=%t)", ttl, ok)
	}
}

func TestIsIPBlocked_RewarmsCacheWithRemainingTime(t *testing.T) {
	cache := newMockCounterStore()
	blocks := newMockBlockStore()
	gate := newTestGate(t, cache, blocks)

	until := time.Now().UTC().Add(time.Hour)
	blocks.records["b1"] = &domain.IPBlockRecord{
		ID:           "b1",
		IP:           "203.0.113.10",
		BlockedUntil: &until,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if !gate.IsIPBlocked(context.Background(), "203.0.113.10") {
		t.Fatal("expected active timed block to hold")
	}
	ttl, ok := cache.blocks[blockCachePrefix+"203.0.113.10"]
	if !ok || ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected cache rewarmed with remaining time, got %s (present=%t)", ttl, ok)
	}
}

func TestIsIPBlocked_DeactivatesExpiredRecord(t *testing.T) {
	cache := newMockCounterStore()
	blocks := newMockBlockStore()
	gate := newTestGate(t, cache, blocks)
	ctx := context.Background()

	until := time.Now().UTC().Add(-time.Minute)
	blocks.records["b1"] = &domain.IPBlockRecord{
		ID:           "b1",
		IP:           "203.0.113.11",
		BlockedUntil: &until,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}

	if gate.IsIPBlocked(ctx, "203.0.113.11") {
		t.Fatal("expected expired block to be released")
	}
	if blocks.records["b1"].IsActive {
		t.Fatal("expected expired record to be deactivated on read")
	}

	record, err := blocks.FindActive(ctx, "203.0.113.11")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected no active record after reconciliation, got %+v", record)
	}
}

func TestIsIPBlocked_FailsOpenOnStoreErrors(t *testing.T) {
	cache := newMockCounterStore()
	cache.failWith = errors.New("connection refused")
	blocks := newMockBlockStore()
	blocks.findErr = errors.New("database is locked")
	gate := newTestGate(t, cache, blocks)

	if gate.IsIPBlocked(context.Background(), "203.0.113.12") {
		t.Fatal("expected storage failures to fail open")
	}
}

func TestIsIPBlocked_FallsBackToDurableOnCacheError(t *testing.T) {
	cache := newMockCounterStore()
	cache.failWith = errors.New("connection refused")
	blocks := newMockBlockStore()
	gate := newTestGate(t, cache, blocks)

	blocks.records["b1"] = &domain.IPBlockRecord{
		ID:        "b1",
		IP:        "203.0.113.13",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if !gate.IsIPBlocked(context.Background(), "203.0.113.13") {
		t.Fatal("expected durable record to hold when the cache is down")
	}
}

func TestBlockIP_FailsClosedOnWriteErrors(t *testing.T) {
	ctx := context.Background()

	cache := newMockCounterStore()
	blocks := newMockBlockStore()
	blocks.createErr = errors.New("database is locked")
	gate := newTestGate(t, cache, blocks)

	if err := gate.BlockIP(ctx, "203.0.113.14", "abuse", "admin", time.Hour); err == nil {
		t.Fatal("expected durable write failure to propagate")
	}
	if len(cache.blocks) != 0 {
		t.Fatal("expected cache untouched when the durable write fails")
	}

	cache = newMockCounterStore()
	cache.failWith = errors.New("connection refused")
	gate = newTestGate(t, cache, newMockBlockStore())

	if err := gate.BlockIP(ctx, "203.0.113.14", "abuse", "admin", time.Hour); err == nil {
		t.Fatal("expected cache warm failure to propagate")
	}
}

func TestBlockIP_RequiresIP(t *testing.T) {
	gate := newTestGate(t, newMockCounterStore(), newMockBlockStore())

	if err := gate.BlockIP(context.Background(), "  ", "abuse", "admin", time.Hour); err == nil {
		t.Fatal("expected error for empty ip")
	}
}
