package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dealdesk/verdict/internal/storage"
	"github.com/dealdesk/verdict/internal/types"
)

func newTestStore(t *testing.T) (*Store, storage.Storage) {
	t.Helper()
	st, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewStore(st), st
}

func TestKeyComposition(t *testing.T) {
	tests := []struct {
		category      Category
		discriminator string
		id            string
		want          string
	}{
		{CategoryEnrichment, "apollo", "company_123", "enrichment:apollo:company_123"},
		{CategoryDiscovery, "tenant-1", "a1b2c3", "discovery:tenant-1:a1b2c3"},
		{CategoryPattern, "email", "example.com", "pattern:email:example.com"},
	}
	for _, tt := range tests {
		if got := Key(tt.category, tt.discriminator, tt.id); got != tt.want {
			t.Errorf("Key(%s, %s, %s) = %s, want %s", tt.category, tt.discriminator, tt.id, got, tt.want)
		}
	}
}

func TestCategoryTTLPresets(t *testing.T) {
	tests := []struct {
		category Category
		want     time.Duration
	}{
		{CategoryEnrichment, 7 * 24 * time.Hour},
		{CategoryDiscovery, 24 * time.Hour},
		{CategoryScore, 12 * time.Hour},
		{CategoryPattern, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := tt.category.TTL(); got != tt.want {
			t.Errorf("%s TTL = %v, want %v", tt.category, got, tt.want)
		}
	}
	if Category("bogus").IsValid() {
		t.Error("unknown category should be invalid")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	key := Key(CategoryEnrichment, "apollo", "company_123")
	if err := store.Set(ctx, "tenant-1", key, map[string]int{"employees": 42}, CategoryEnrichment); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found, err := store.Get(ctx, "tenant-1", key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if string(value) != `{"employees":42}` {
		t.Errorf("unexpected value: %s", value)
	}
}

func TestGetAbsent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, found, err := store.Get(ctx, "tenant-1", "enrichment:apollo:missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("absent key should not be found")
	}
}

func TestGetExpiredReturnsAbsent(t *testing.T) {
	ctx := context.Background()
	store, st := newTestStore(t)

	// Plant an already-expired entry directly in storage; Get must treat it
	// as absent rather than returning the stale payload.
	now := time.Now()
	entry := &types.MemoryEntry{
		TenantID:  "tenant-1",
		Key:       "score:deal:d1",
		Value:     []byte(`{"score":0.9}`),
		StoredAt:  now.Add(-24 * time.Hour),
		ExpiresAt: now.Add(-12 * time.Hour),
	}
	if err := st.SetMemory(ctx, entry); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}

	_, found, err := store.Get(ctx, "tenant-1", "score:deal:d1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expired entry must be treated as absent")
	}
}

func TestSetRejectsUnknownCategory(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	err := store.Set(ctx, "tenant-1", "bogus:x:y", "value", Category("bogus"))
	if err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	store, st := newTestStore(t)

	now := time.Now()
	expired := &types.MemoryEntry{
		TenantID: "tenant-1", Key: "discovery:t1:old",
		Value: []byte(`{}`), StoredAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour),
	}
	if err := st.SetMemory(ctx, expired); err != nil {
		t.Fatalf("SetMemory failed: %v", err)
	}
	if err := store.Set(ctx, "tenant-1", Key(CategoryDiscovery, "t1", "new"), "v", CategoryDiscovery); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged entry, got %d", purged)
	}
}
