package repository

import (
	"context"
	"fmt"
	"time"
)

// FingerprintLedger is the database-backed DuplicateLedger. The insert is
// conflict-guarded, so two concurrent reservations of one fingerprint
// resolve to exactly one winner on both SQLite and Postgres.
type FingerprintLedger struct {
	db *DB
}

func NewFingerprintLedger(db *DB) *FingerprintLedger {
	return &FingerprintLedger{db: db}
}

func (l *FingerprintLedger) CheckAndReserve(ctx context.Context, fingerprint string) (bool, error) {
	res, err := l.db.exec(ctx,
		`INSERT INTO fingerprint_reservation (fingerprint, reserved_at)
		 VALUES (?, ?) ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserve fingerprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve fingerprint: %w", err)
	}
	return n == 1, nil
}

func (l *FingerprintLedger) Release(ctx context.Context, fingerprint string) error {
	if _, err := l.db.exec(ctx,
		`DELETE FROM fingerprint_reservation WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("release fingerprint: %w", err)
	}
	return nil
}
