package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
)

func newTestStore(t *testing.T) *BlockStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "blocks.db"))
	if err != nil {
		t.Fatalf("failed to open block store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func timedRecord(id, ip string, createdAt time.Time, until *time.Time) domain.IPBlockRecord {
	return domain.IPBlockRecord{
		ID:           id,
		IP:           ip,
		Reason:       "brute force",
		BlockedUntil: until,
		BlockedBy:    "admin",
		IsActive:     true,
		CreatedAt:    createdAt,
	}
}

func TestCreateAndFindActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Now().UTC().Truncate(time.Second)
	until := createdAt.Add(time.Hour)
	if err := store.Create(ctx, timedRecord("b1", "203.0.113.1", createdAt, &until)); err != nil {
		t.Fatalf("unexpected error on create: %v", err)
	}

	record, err := store.FindActive(ctx, "203.0.113.1")
	if err != nil {
		t.Fatalf("unexpected error on find: %v", err)
	}
	if record == nil {
		t.Fatal("expected an active record")
	}
	if record.ID != "b1" || record.IP != "203.0.113.1" || record.Reason != "brute force" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.BlockedBy != "admin" {
		t.Fatalf("expected blocked_by preserved, got %q", record.BlockedBy)
	}
	if record.BlockedUntil == nil || !record.BlockedUntil.Equal(until) {
		t.Fatalf("expected blocked_until %s, got %v", until, record.BlockedUntil)
	}
	if !record.IsActive {
		t.Fatal("expected record to be active")
	}
}

func TestFindActive_NoRecord(t *testing.T) {
	store := newTestStore(t)

	record, err := store.FindActive(context.Background(), "198.51.100.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil for unknown ip, got %+v", record)
	}
}

func TestFindActive_ReturnsLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	if err := store.Create(ctx, timedRecord("old", "203.0.113.2", base.Add(-time.Hour), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Create(ctx, timedRecord("new", "203.0.113.2", base, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, err := store.FindActive(ctx, "203.0.113.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil || record.ID != "new" {
		t.Fatalf("expected the most recent record, got %+v", record)
	}
}

func TestFindActive_NullableColumns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := timedRecord("b1", "203.0.113.3", time.Now().UTC().Truncate(time.Second), nil)
	record.BlockedBy = ""
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := store.FindActive(ctx, "203.0.113.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil {
		t.Fatal("expected a record")
	}
	if found.BlockedUntil != nil {
		t.Fatalf("expected indefinite block, got %v", found.BlockedUntil)
	}
	if found.BlockedBy != "" {
		t.Fatalf("expected empty blocked_by, got %q", found.BlockedBy)
	}
}

func TestDeactivate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, timedRecord("b1", "203.0.113.4", time.Now().UTC(), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Deactivate(ctx, "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, err := store.FindActive(ctx, "203.0.113.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected no active record after deactivation, got %+v", record)
	}
}

func TestDeactivate_UnknownID(t *testing.T) {
	store := newTestStore(t)

	err := store.Deactivate(context.Background(), "missing")
	if !errors.Is(err, domain.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestActiveBlocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"b1", "b2", "b3"} {
		ip := "203.0.113." + strconv.Itoa(20+i)
		if err := store.Create(ctx, timedRecord(id, ip, base.Add(time.Duration(i)*time.Minute), nil)); err != nil {
			t.Fatalf("unexpected error creating %s: %v", id, err)
		}
	}
	if err := store.Deactivate(ctx, "b2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := store.ActiveBlocks(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 active records, got %d", len(records))
	}
	if records[0].ID != "b3" || records[1].ID != "b1" {
		t.Fatalf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
	}

	limited, err := store.ActiveBlocks(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "b3" {
		t.Fatalf("expected only the newest record, got %+v", limited)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
