package localstore

import (
	"context"
	"fmt"
	"time"
)

// AcquireDrain takes or renews the single queue drain lease for owner. It
// reports false while another owner holds an unexpired lease. Every process
// sharing the database file competes for the same row.
func (db *DB) AcquireDrain(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return false, err
	}
	now := time.Now().UnixNano()
	res, err := conn.ExecContext(ctx, `
		INSERT INTO drain_lease (id, owner, expires_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner      = excluded.owner,
			expires_at = excluded.expires_at
		WHERE drain_lease.owner = excluded.owner OR drain_lease.expires_at <= ?
	`, owner, now+int64(ttl), now)
	if err != nil {
		return false, fmt.Errorf("localstore: acquire drain lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("localstore: acquire drain lease: %w", err)
	}
	return n == 1, nil
}

// ReleaseDrain drops the lease if owner still holds it.
func (db *DB) ReleaseDrain(ctx context.Context, owner string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM drain_lease WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("localstore: release drain lease: %w", err)
	}
	return nil
}
