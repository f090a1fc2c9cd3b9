package sqlite

const schema = `
-- Memory entries table (namespaced cache, lazy expiry)
CREATE TABLE IF NOT EXISTS memory_entries (
    tenant_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '{}',
    stored_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL,
    PRIMARY KEY (tenant_id, key)
);

CREATE INDEX IF NOT EXISTS idx_memory_expires ON memory_entries(expires_at);

-- Action records table (append-only, similarity search source)
CREATE TABLE IF NOT EXISTS action_records (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    action_type TEXT NOT NULL,
    action_metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_lookup
    ON action_records(tenant_id, user_id, action_type, created_at);

-- Fingerprints table (exact-duplicate detection)
-- Rows are append-only; dedup reads the most recent row for (tenant_id, hash)
-- inside the caller's window. Writes are serialized by BEGIN IMMEDIATE.
CREATE TABLE IF NOT EXISTS fingerprints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hash TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    action_type TEXT NOT NULL,
    action_params TEXT NOT NULL DEFAULT '{}',
    action_id TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    FOREIGN KEY (action_id) REFERENCES action_records(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_fingerprints_lookup
    ON fingerprints(tenant_id, hash, created_at);

-- Config table
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
