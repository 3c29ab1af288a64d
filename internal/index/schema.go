// Package index keeps a SQLite picture of the vault: notes, the links and
// headings the render pipeline found in them, and full-text search (FTS5 when
// built with the sqlite_fts5 tag, LIKE otherwise).
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. Everything in the database
// is derived from the vault, so a version change drops the tables and the
// next Sync rebuilds them.
const schemaVersion = 3

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type   TEXT NOT NULL DEFAULT 'wikilink',
	UNIQUE(source, target, type)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

-- Link targets that matched no file, keyed by folded file name.
CREATE TABLE IF NOT EXISTS pending_links (
	source TEXT NOT NULL,
	key    TEXT NOT NULL,
	UNIQUE(source, key)
);

CREATE INDEX IF NOT EXISTS idx_pending_key ON pending_links(key);

CREATE TABLE IF NOT EXISTS headings (
	path   TEXT NOT NULL,
	ord    INTEGER NOT NULL,
	level  INTEGER NOT NULL,
	text   TEXT NOT NULL,
	anchor TEXT NOT NULL,
	PRIMARY KEY (path, ord)
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: set schema version: %w", err)
	}
	return &DB{conn: conn}, nil
}

// migrate drops tables written by another schema version.
func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}
	tables := []string{"notes", "links", "pending_links", "headings", "files_fts"}
	if ftsTables != "" {
		tables = append(tables, ftsTables)
	}
	for _, t := range tables {
		if _, err := conn.Exec(`DROP TABLE IF EXISTS ` + t); err != nil {
			return fmt.Errorf("index: drop %s: %w", t, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
