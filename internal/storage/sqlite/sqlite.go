package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dealdesk/verdict/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// ActionFilter narrows a recent-action query. TenantID is required; empty
// UserID or ActionType match any value. Since bounds the lookback window.
type ActionFilter struct {
	TenantID   string
	UserID     string
	ActionType string
	Since      time.Time
	Limit      int
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for better concurrency; the busy timeout makes contending
	// writers wait for the lock instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every query sees the same schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SetMemory writes a memory entry, overwriting any existing row for the same
// (tenant_id, key). Last write wins; concurrent writers are not ordered.
func (s *SQLiteStorage) SetMemory(ctx context.Context, entry *types.MemoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (tenant_id, key, value, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, key) DO UPDATE SET
			value = excluded.value,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, entry.TenantID, entry.Key, string(entry.Value), entry.StoredAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to set memory entry: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory entry by (tenant_id, key). Returns (nil, nil)
// when no row exists. Expiry is the caller's concern: the row is returned
// as stored so the memory layer can apply its own read-time clock.
func (s *SQLiteStorage) GetMemory(ctx context.Context, tenantID, key string) (*types.MemoryEntry, error) {
	var entry types.MemoryEntry
	var value string

	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, key, value, stored_at, expires_at
		FROM memory_entries
		WHERE tenant_id = ? AND key = ?
	`, tenantID, key).Scan(&entry.TenantID, &entry.Key, &value, &entry.StoredAt, &entry.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory entry: %w", err)
	}

	entry.Value = []byte(value)
	return &entry, nil
}

// PurgeExpiredMemory deletes entries whose expiry has passed. Space
// reclamation only; correctness never depends on this running.
func (s *SQLiteStorage) PurgeExpiredMemory(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memory_entries WHERE expires_at < ?
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired memory entries: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged entries: %w", err)
	}
	return purged, nil
}

// CheckAndRecordAction atomically performs the duplicate check and, when no
// duplicate exists, persists the fingerprint plus its action record.
//
// The existence check and the insert must be one logical operation: two
// concurrent identical requests may not both observe "no duplicate". We use
// BEGIN IMMEDIATE to acquire SQLite's write lock before the read, which
// serializes the check-then-insert across connections and processes.
//
// We use raw Exec instead of BeginTx because database/sql doesn't support
// transaction modes in BeginTx, and the sqlite3 driver's BeginTx always uses
// DEFERRED mode.
func (s *SQLiteStorage) CheckAndRecordAction(ctx context.Context, fp *types.Fingerprint, rec *types.ActionRecord, windowStart time.Time) (*types.Fingerprint, error) {
	if err := fp.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Acquire a dedicated connection so BEGIN IMMEDIATE / COMMIT run on the
	// same connection; the pool would otherwise split them.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Use context.Background() for ROLLBACK so cleanup happens even if ctx
	// is canceled mid-transaction.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	// Look for the most recent fingerprint with this hash inside the window
	var orig types.Fingerprint
	var params string
	err = conn.QueryRowContext(ctx, `
		SELECT hash, tenant_id, user_id, action_type, action_params, action_id, created_at
		FROM fingerprints
		WHERE tenant_id = ? AND hash = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`, fp.TenantID, fp.Hash, windowStart.UTC()).Scan(
		&orig.Hash, &orig.TenantID, &orig.UserID, &orig.ActionType,
		&params, &orig.ActionID, &orig.CreatedAt,
	)
	if err == nil {
		// Duplicate: no new write. COMMIT the read-only transaction.
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		committed = true
		orig.ActionParams = []byte(params)
		return &orig, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check for duplicate fingerprint: %w", err)
	}

	// Not a duplicate: persist the action record and its fingerprint together
	_, err = conn.ExecContext(ctx, `
		INSERT INTO action_records (id, tenant_id, user_id, action_type, action_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TenantID, rec.UserID, rec.ActionType, string(rec.ActionMetadata), rec.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert action record: %w", err)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO fingerprints (hash, tenant_id, user_id, action_type, action_params, action_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fp.Hash, fp.TenantID, fp.UserID, fp.ActionType, string(fp.ActionParams), fp.ActionID, fp.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert fingerprint: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil, nil
}

// GetActionRecord retrieves an action record by ID
func (s *SQLiteStorage) GetActionRecord(ctx context.Context, id string) (*types.ActionRecord, error) {
	var rec types.ActionRecord
	var metadata string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, action_type, action_metadata, created_at
		FROM action_records
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.ActionType, &metadata, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action record: %w", err)
	}

	rec.ActionMetadata = []byte(metadata)
	return &rec, nil
}

// GetRecentActions returns action records matching the filter, newest first
func (s *SQLiteStorage) GetRecentActions(ctx context.Context, filter ActionFilter) ([]*types.ActionRecord, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	whereClauses := []string{"tenant_id = ?"}
	args := []interface{}{filter.TenantID}

	if filter.UserID != "" {
		whereClauses = append(whereClauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ActionType != "" {
		whereClauses = append(whereClauses, "action_type = ?")
		args = append(args, filter.ActionType)
	}
	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	querySQL := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, action_type, action_metadata, created_at
		FROM action_records
		WHERE %s
		ORDER BY created_at DESC
		%s
	`, strings.Join(whereClauses, " AND "), limitSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent actions: %w", err)
	}
	defer rows.Close()

	var records []*types.ActionRecord
	for rows.Next() {
		var rec types.ActionRecord
		var metadata string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.ActionType, &metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}
		rec.ActionMetadata = []byte(metadata)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action records: %w", err)
	}

	return records, nil
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
