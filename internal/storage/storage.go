package storage

import (
	"context"
	"time"

	"github.com/dealdesk/verdict/internal/storage/sqlite"
	"github.com/dealdesk/verdict/internal/types"
)

// Storage defines the interface for durable state backends.
//
// All cross-process consistency lives here: the fingerprint check-and-record
// is atomic per (tenant_id, hash) inside the backend, so callers never need
// application-level locks.
type Storage interface {
	// Memory entries (namespaced key/value cache with per-entry expiry)
	SetMemory(ctx context.Context, entry *types.MemoryEntry) error
	GetMemory(ctx context.Context, tenantID, key string) (*types.MemoryEntry, error)
	PurgeExpiredMemory(ctx context.Context, now time.Time) (int64, error)

	// Fingerprints + action records
	//
	// CheckAndRecordAction looks up the most recent fingerprint with the same
	// (tenant_id, hash) created at or after windowStart. If one exists it is
	// returned and nothing is written. Otherwise the fingerprint and its action
	// record are persisted in one transaction and (nil, nil) is returned.
	CheckAndRecordAction(ctx context.Context, fp *types.Fingerprint, rec *types.ActionRecord, windowStart time.Time) (*types.Fingerprint, error)
	GetActionRecord(ctx context.Context, id string) (*types.ActionRecord, error)
	GetRecentActions(ctx context.Context, filter ActionFilter) ([]*types.ActionRecord, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// ActionFilter narrows a recent-action query. Zero-valued fields are ignored,
// except TenantID which is always required.
type ActionFilter = sqlite.ActionFilter

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".verdict/verdict.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".verdict/verdict.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".verdict/verdict.db"
	}

	st, err := sqlite.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}
