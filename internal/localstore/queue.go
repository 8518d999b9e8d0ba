package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/offnote/internal/models"
)

// Enqueue appends op to the pending_ops log and returns it with its
// assigned sequence number.
func (db *DB) Enqueue(ctx context.Context, op models.PendingOp) (models.PendingOp, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return op, err
	}
	payload, err := json.Marshal(op.Note)
	if err != nil {
		return op, fmt.Errorf("localstore: encode op: %w", err)
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}
	res, err := conn.ExecContext(ctx,
		`INSERT INTO pending_ops (kind, note_id, note, enqueued_at) VALUES (?, ?, ?, ?)`,
		string(op.Kind), op.Note.ID, string(payload), op.EnqueuedAt.UnixNano())
	if err != nil {
		return op, fmt.Errorf("localstore: enqueue: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return op, fmt.Errorf("localstore: enqueue seq: %w", err)
	}
	op.Seq = seq
	return op, nil
}

// Head returns the oldest pending op, or nil when the queue is empty.
func (db *DB) Head(ctx context.Context) (*models.PendingOp, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx,
		`SELECT seq, kind, note, enqueued_at FROM pending_ops ORDER BY seq ASC LIMIT 1`)
	op, err := scanOp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: head: %w", err)
	}
	return &op, nil
}

// Remove deletes the op with the given sequence number.
func (db *DB) Remove(ctx context.Context, seq int64) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM pending_ops WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("localstore: remove op %d: %w", seq, err)
	}
	return nil
}

// Pending returns every queued op in FIFO order.
func (db *DB) Pending(ctx context.Context) ([]models.PendingOp, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx,
		`SELECT seq, kind, note, enqueued_at FROM pending_ops ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: pending: %w", err)
	}
	defer rows.Close()

	out := []models.PendingOp{}
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// Len returns the number of queued ops.
func (db *DB) Len(ctx context.Context) (int, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM pending_ops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("localstore: queue len: %w", err)
	}
	return n, nil
}

// HasPending reports whether any queued op refers to noteID.
func (db *DB) HasPending(ctx context.Context, noteID string) (bool, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pending_ops WHERE note_id = ?)`, noteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("localstore: has pending: %w", err)
	}
	return exists, nil
}

func scanOp(s scanner) (models.PendingOp, error) {
	var (
		op      models.PendingOp
		kind    string
		payload string
		nanos   int64
	)
	if err := s.Scan(&op.Seq, &kind, &payload, &nanos); err != nil {
		return models.PendingOp{}, err
	}
	if err := json.Unmarshal([]byte(payload), &op.Note); err != nil {
		return models.PendingOp{}, fmt.Errorf("localstore: decode op %d: %w", op.Seq, err)
	}
	op.Kind = models.OpKind(kind)
	op.EnqueuedAt = time.Unix(0, nanos).UTC()
	return op, nil
}
