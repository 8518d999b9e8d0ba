// Package localstore provides SQLite-backed durable persistence for notes and
// the pending-operation queue.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL,
	sync_status TEXT NOT NULL DEFAULT 'unsynced'
);

CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);

CREATE TABLE IF NOT EXISTS pending_ops (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	note_id     TEXT NOT NULL,
	note        TEXT NOT NULL,
	enqueued_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_ops_note_id ON pending_ops(note_id);

CREATE TABLE IF NOT EXISTS drain_lease (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	owner      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

var errClosed = errors.New("localstore: closed")

// DB wraps a lazily opened sql.DB. The first call that needs the connection
// opens the file and applies the schema; concurrent first callers share that
// single initialization.
type DB struct {
	dsn string

	mu     sync.RWMutex
	conn   *sql.DB
	closed bool

	init singleflight.Group
}

// New returns a DB for dsn without touching the file system.
func New(dsn string) *DB {
	return &DB{dsn: dsn}
}

// Open returns a DB for dsn and initializes it immediately.
func Open(dsn string) (*DB, error) {
	db := New(dsn)
	if _, err := db.handle(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) handle(ctx context.Context) (*sql.DB, error) {
	db.mu.RLock()
	conn, closed := db.conn, db.closed
	db.mu.RUnlock()
	if closed {
		return nil, errClosed
	}
	if conn != nil {
		return conn, nil
	}

	v, err, _ := db.init.Do("open", func() (any, error) {
		db.mu.Lock()
		defer db.mu.Unlock()
		if db.closed {
			return nil, errClosed
		}
		if db.conn != nil {
			return db.conn, nil
		}
		c, err := openConn(ctx, db.dsn)
		if err != nil {
			return nil, err
		}
		db.conn = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func openConn(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("localstore: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: apply schema: %w", err)
	}
	return conn, nil
}

// Initialized reports whether the underlying connection has been opened.
func (db *DB) Initialized() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn != nil
}

// Close closes the underlying database connection, if it was ever opened.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
