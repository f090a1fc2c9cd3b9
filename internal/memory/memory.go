// Package memory implements the persistent memory store: a tenant-scoped
// key/value cache with fixed per-category TTLs, backed by durable storage.
//
// Callers never pass raw TTL seconds. TTL policy is centralized in the
// category presets so it stays auditable in one place.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealdesk/verdict/internal/storage"
	"github.com/dealdesk/verdict/internal/types"
)

// Category selects the TTL preset for a memory entry
type Category string

const (
	CategoryEnrichment Category = "enrichment" // raw provider signals
	CategoryDiscovery  Category = "discovery"  // discovery query results
	CategoryScore      Category = "score"      // cached evaluation results
	CategoryPattern    Category = "pattern"    // learned patterns (e.g. email formats)
)

// ttlPresets are the fixed retention periods per category.
var ttlPresets = map[Category]time.Duration{
	CategoryEnrichment: 7 * 24 * time.Hour,
	CategoryDiscovery:  24 * time.Hour,
	CategoryScore:      12 * time.Hour,
	CategoryPattern:    30 * 24 * time.Hour,
}

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	_, ok := ttlPresets[c]
	return ok
}

// TTL returns the fixed retention period for the category
func (c Category) TTL() time.Duration {
	return ttlPresets[c]
}

// Key composes a memory key as "<category>:<discriminator>:<id>",
// e.g. "enrichment:apollo:company_123".
func Key(category Category, discriminator, id string) string {
	return fmt.Sprintf("%s:%s:%s", category, discriminator, id)
}

// Store is the persistent memory store. It is stateless with respect to
// in-process memory; all durable state lives in the storage backend.
type Store struct {
	storage storage.Storage
}

// NewStore creates a memory store over the given storage backend
func NewStore(st storage.Storage) *Store {
	return &Store{storage: st}
}

// Get retrieves a value by key. Returns (nil, false, nil) when the key is
// absent or the entry has expired; expiry is computed at read time so a
// stale payload is never returned, with no background sweep required.
func (s *Store) Get(ctx context.Context, tenantID, key string) (json.RawMessage, bool, error) {
	entry, err := s.storage.GetMemory(ctx, tenantID, key)
	if err != nil {
		return nil, false, types.StorageUnavailable(err)
	}
	if entry == nil {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set stores a value under the given key with the category's TTL preset.
// Overwrites unconditionally: last write wins.
func (s *Store) Set(ctx context.Context, tenantID, key string, value interface{}, category Category) error {
	if !category.IsValid() {
		return fmt.Errorf("invalid memory category: %s", category)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	now := time.Now()
	entry := &types.MemoryEntry{
		TenantID:  tenantID,
		Key:       key,
		Value:     raw,
		StoredAt:  now,
		ExpiresAt: now.Add(category.TTL()),
	}

	if err := s.storage.SetMemory(ctx, entry); err != nil {
		return types.StorageUnavailable(err)
	}
	return nil
}

// PurgeExpired deletes entries past their expiry. Space reclamation only;
// Get already treats expired entries as absent.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.storage.PurgeExpiredMemory(ctx, time.Now())
	if err != nil {
		return 0, types.StorageUnavailable(err)
	}
	return purged, nil
}
