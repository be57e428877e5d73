package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
);`

// SQL stores entries in a SQLite file or a remote libsql database.
type SQL struct {
	db *sql.DB
}

// OpenSQL opens dbURL, picking the libsql driver for libsql:// and wss://
// URLs and the local SQLite driver otherwise, and creates the schema.
func OpenSQL(ctx context.Context, dbURL string) (*SQL, error) {
	driverName := "sqlite"
	if strings.HasPrefix(dbURL, "libsql://") || strings.HasPrefix(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driverName, err)
	}

	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQL{db: db}, nil
}

// Store returns the namespace ns.
func (s *SQL) Store(ns string) Store {
	return namespace{kv: s, name: ns}
}

// Ping checks database connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) get(ctx context.Context, ns, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE namespace = ? AND key = ?`,
		ns, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", ns, key, err)
	}
	return value, nil
}

func (s *SQL) set(ctx context.Context, ns, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, ns, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *SQL) list(ctx context.Context, ns string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE namespace = ? ORDER BY key`, ns)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", ns, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
