package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/dealdesk/verdict/internal/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	entry := &types.MemoryEntry{
		TenantID:  "tenant-1",
		Key:       "enrichment:apollo:company_123",
		Value:     []byte(`{"employees":42}`),
		StoredAt:  now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}

	if err := store.SetMemory(ctx, entry); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "tenant-1", "enrichment:apollo:company_123")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if string(got.Value) != `{"employees":42}` {
		t.Errorf("unexpected value: %s", got.Value)
	}
}

func TestMemoryGetAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	got, err := store.GetMemory(ctx, "tenant-1", "no:such:key")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent key, got %+v", got)
	}
}

func TestMemoryLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	first := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "score:deal:d1",
		Value: []byte(`{"score":0.5}`), StoredAt: now, ExpiresAt: now.Add(time.Hour),
	}
	second := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "score:deal:d1",
		Value: []byte(`{"score":0.9}`), StoredAt: now.Add(time.Minute), ExpiresAt: now.Add(2 * time.Hour),
	}

	if err := store.SetMemory(ctx, first); err != nil {
		t.Fatalf("first SetMemory failed: %v", err)
	}
	if err := store.SetMemory(ctx, second); err != nil {
		t.Fatalf("second SetMemory failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "tenant-1", "score:deal:d1")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if string(got.Value) != `{"score":0.9}` {
		t.Errorf("expected second write to win, got %s", got.Value)
	}
}

func TestMemoryTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	entry := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "pattern:email:example.com",
		Value: []byte(`{"pattern":"first.last"}`), StoredAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := store.SetMemory(ctx, entry); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}

	got, err := store.GetMemory(ctx, "tenant-2", "pattern:email:example.com")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got != nil {
		t.Error("tenant-2 should not see tenant-1's entry")
	}
}

func TestPurgeExpiredMemory(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	expired := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "discovery:t1:q1",
		Value: []byte(`{}`), StoredAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
	}
	live := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "discovery:t1:q2",
		Value: []byte(`{}`), StoredAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := store.SetMemory(ctx, expired); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}
	if err := store.SetMemory(ctx, live); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}

	purged, err := store.PurgeExpiredMemory(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredMemory failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged entry, got %d", purged)
	}

	got, err := store.GetMemory(ctx, "tenant-1", "discovery:t1:q2")
	if err != nil {
		t.Fatalf("GetMemory failed: %v", err)
	}
	if got == nil {
		t.Error("live entry should survive the purge")
	}
}

func testFingerprint(hash, actionID string, createdAt time.Time) (*types.Fingerprint, *types.ActionRecord) {
	fp := &types.Fingerprint{
		Hash:         hash,
		TenantID:     "tenant-1",
		UserID:       "user-1",
		ActionType:   "outreach_email",
		ActionParams: []byte(`{"company_id":"c1"}`),
		ActionID:     actionID,
		CreatedAt:    createdAt,
	}
	rec := &types.ActionRecord{
		ID:             actionID,
		TenantID:       "tenant-1",
		UserID:         "user-1",
		ActionType:     "outreach_email",
		ActionMetadata: []byte(`{"company_name":"Acme"}`),
		CreatedAt:      createdAt,
	}
	return fp, rec
}

func TestCheckAndRecordActionFreshThenDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	windowStart := now.Add(-24 * time.Hour)

	fp1, rec1 := testFingerprint("abc123", "act-1", now)
	orig, err := store.CheckAndRecordAction(ctx, fp1, rec1, windowStart)
	if err != nil {
		t.Fatalf("first CheckAndRecordAction failed: %v", err)
	}
	if orig != nil {
		t.Fatalf("first call should not find a duplicate, got %+v", orig)
	}

	fp2, rec2 := testFingerprint("abc123", "act-2", now.Add(time.Minute))
	orig, err = store.CheckAndRecordAction(ctx, fp2, rec2, windowStart)
	if err != nil {
		t.Fatalf("second CheckAndRecordAction failed: %v", err)
	}
	if orig == nil {
		t.Fatal("second call should return the original fingerprint")
	}
	if orig.ActionID != "act-1" {
		t.Errorf("expected original action act-1, got %s", orig.ActionID)
	}

	// The duplicate must not have written a new action record
	rec, err := store.GetActionRecord(ctx, "act-2")
	if err != nil {
		t.Fatalf("GetActionRecord failed: %v", err)
	}
	if rec != nil {
		t.Error("duplicate call should be a no-op, but act-2 was written")
	}
}

func TestCheckAndRecordActionOutsideWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	fp1, rec1 := testFingerprint("stale-hash", "act-old", old)
	if _, err := store.CheckAndRecordAction(ctx, fp1, rec1, old.Add(-time.Hour)); err != nil {
		t.Fatalf("seed CheckAndRecordAction failed: %v", err)
	}

	// Same hash, but the prior fingerprint predates the window: not a duplicate
	now := time.Now().UTC()
	fp2, rec2 := testFingerprint("stale-hash", "act-new", now)
	orig, err := store.CheckAndRecordAction(ctx, fp2, rec2, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CheckAndRecordAction failed: %v", err)
	}
	if orig != nil {
		t.Errorf("fingerprint outside the window should not count as duplicate, got %+v", orig)
	}
}

func TestCheckAndRecordActionTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	windowStart := now.Add(-24 * time.Hour)

	fp1, rec1 := testFingerprint("shared-hash", "act-1", now)
	if _, err := store.CheckAndRecordAction(ctx, fp1, rec1, windowStart); err != nil {
		t.Fatalf("seed CheckAndRecordAction failed: %v", err)
	}

	fp2, rec2 := testFingerprint("shared-hash", "act-2", now)
	fp2.TenantID = "tenant-2"
	rec2.TenantID = "tenant-2"
	orig, err := store.CheckAndRecordAction(ctx, fp2, rec2, windowStart)
	if err != nil {
		t.Fatalf("CheckAndRecordAction failed: %v", err)
	}
	if orig != nil {
		t.Error("same hash under a different tenant should not be a duplicate")
	}
}

func TestGetRecentActions(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	now := time.Now().UTC()
	windowStart := now.Add(-24 * time.Hour)

	for i, hash := range []string{"h1", "h2", "h3"} {
		fp, rec := testFingerprint(hash, "act-"+hash, now.Add(time.Duration(i)*time.Minute))
		if _, err := store.CheckAndRecordAction(ctx, fp, rec, windowStart); err != nil {
			t.Fatalf("seed CheckAndRecordAction failed: %v", err)
		}
	}

	records, err := store.GetRecentActions(ctx, ActionFilter{
		TenantID:   "tenant-1",
		UserID:     "user-1",
		ActionType: "outreach_email",
		Since:      windowStart,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("GetRecentActions failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Newest first
	if records[0].ID != "act-h3" {
		t.Errorf("expected newest record first, got %s", records[0].ID)
	}

	// Missing tenant is an error, not a full scan
	if _, err := store.GetRecentActions(ctx, ActionFilter{}); err == nil {
		t.Error("expected error for missing tenant_id")
	}
}
