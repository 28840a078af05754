// Package sqlite implements configmgr/backend.Backend over a two-column
// SQLite table, per spec.md §4.8 "SQLite backend stores each pair in a
// two-column table and wraps the flush in its native transaction."
// Grounded on Aureuma-si/apps/ReleaseParty/backend/internal/store's
// database/sql + modernc.org/sqlite usage (sql.Open("sqlite", path),
// single-connection pool, migrate-on-open).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jiufeng-go/jiufeng/configmgr"
	"github.com/jiufeng-go/jiufeng/internal/jferr"

	"github.com/jiufeng-go/jiufeng/configmgr/backend"
)

func wrapInit(op string, err error) error {
	return jferr.Wrap(op, configmgr.ErrPersistencyInitError.Code(), err)
}
func wrapCompile(op string, err error) error {
	return jferr.Wrap(op, configmgr.ErrSQLCompileError.Code(), err)
}
func wrapEval(op string, err error) error {
	return jferr.Wrap(op, configmgr.ErrSQLEvalError.Code(), err)
}

// Backend persists entries in a `config` table (name TEXT PRIMARY KEY,
// value TEXT) inside a SQLite database file.
type Backend struct {
	db *sql.DB
}

// New constructs a sqlite Backend. Open must still be called.
func New() *Backend { return &Backend{} }

// Open opens (creating if absent) the database at cfg.Path and ensures
// the config table exists.
func (b *Backend) Open(cfg backend.Config) error {
	if cfg.Path == "" {
		return wrapInit("Open", fmt.Errorf("empty path"))
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return wrapInit("Open", err)
	}
	db.SetMaxOpenConns(1)

	const ddl = `CREATE TABLE IF NOT EXISTS config (name TEXT PRIMARY KEY, value TEXT NOT NULL)`
	if _, err := db.ExecContext(context.Background(), ddl); err != nil {
		_ = db.Close()
		return wrapCompile("Open", err)
	}

	b.db = db
	return nil
}

// Close closes the underlying database handle.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load reads every (name, value) row.
func (b *Backend) Load() (map[string]string, error) {
	rows, err := b.db.QueryContext(context.Background(), `SELECT name, value FROM config`)
	if err != nil {
		return nil, wrapEval("Load", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, wrapEval("Load", err)
		}
		entries[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, wrapEval("Load", err)
	}
	return entries, nil
}

// Flush replaces the table's contents with entries inside one native
// sql.Tx, per spec.md §4.8's "wraps the flush in its native transaction."
func (b *Backend) Flush(entries map[string]string) error {
	ctx := context.Background()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapEval("Flush", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM config`); err != nil {
		return wrapEval("Flush", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO config(name, value) VALUES (?, ?)`)
	if err != nil {
		return wrapCompile("Flush", err)
	}
	defer stmt.Close()

	for name, value := range entries {
		if _, err := stmt.ExecContext(ctx, name, value); err != nil {
			return wrapEval("Flush", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapEval("Flush", err)
	}
	return nil
}
