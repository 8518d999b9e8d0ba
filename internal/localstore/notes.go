package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
)

const noteColumns = `id, title, content, updated_at, sync_status`

// GetAll returns every note ordered by updatedAt ascending.
func (db *DB) GetAll(ctx context.Context) ([]models.Note, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY updated_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: get all: %w", err)
	}
	return scanNotes(rows)
}

// Get returns the note with the given id, or an error wrapping
// apperr.ErrNotFound when absent.
func (db *DB) Get(ctx context.Context, id string) (*models.Note, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("localstore: note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: get %s: %w", id, err)
	}
	return &n, nil
}

// Put inserts or fully replaces a note.
func (db *DB) Put(ctx context.Context, n models.Note) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			content     = excluded.content,
			updated_at  = excluded.updated_at,
			sync_status = excluded.sync_status
	`, n.ID, n.Title, n.Content, n.UpdatedAt.UnixNano(), string(n.SyncStatus.Normalize()))
	if err != nil {
		return fmt.Errorf("localstore: put %s: %w", n.ID, err)
	}
	return nil
}

// Delete removes a note. Deleting an absent id is a no-op.
func (db *DB) Delete(ctx context.Context, id string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", id, err)
	}
	return nil
}

// Search returns notes whose title or content contains query, ignoring case,
// in updatedAt order. LIKE treats % and _ as wildcards and folds ASCII only,
// so matching is done by models.Note.Matches.
func (db *DB) Search(ctx context.Context, query string) ([]models.Note, error) {
	all, err := db.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("localstore: search: %w", err)
	}
	out := []models.Note{}
	for _, n := range all {
		if n.Matches(query) {
			out = append(out, n)
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var (
		n      models.Note
		nanos  int64
		status string
	)
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &nanos, &status); err != nil {
		return models.Note{}, err
	}
	n.UpdatedAt = time.Unix(0, nanos).UTC()
	n.SyncStatus = models.SyncStatus(status).Normalize()
	return n, nil
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
