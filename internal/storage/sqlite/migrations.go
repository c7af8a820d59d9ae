package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// records carries an explicit position column because stored order
// (newest first) is part of the contract and SQLite gives no ordering
// guarantee without it. The kv table backs the session slot.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    credential_digest TEXT NOT NULL DEFAULT '',
    registered_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    id INTEGER NOT NULL,
    owner_id TEXT NOT NULL,
    owner_name TEXT NOT NULL,
    field TEXT NOT NULL,
    attempted INTEGER NOT NULL,
    correct INTEGER NOT NULL,
    rate INTEGER NOT NULL,
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (owner_id, id),
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_owner_position ON records(owner_id, position);
CREATE INDEX IF NOT EXISTS idx_records_field ON records(field);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
