package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline/internal/platform/db"
)

// SequenceStore issues human-readable document numbers unique per day,
// e.g. INV-20260831-0001. Numbers are drawn from an atomically incremented
// counter row so concurrent issuers never observe the same value, and the
// draw joins the caller's transaction so an aborted document does not
// consume a visible number.
type SequenceStore struct {
	pool *pgxpool.Pool
}

// NewSequenceStore constructs the store.
func NewSequenceStore(pool *pgxpool.Pool) *SequenceStore {
	return &SequenceStore{pool: pool}
}

// Next returns the next document number for prefix on the given day.
func (s *SequenceStore) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	if s == nil {
		return "", errors.New("sequence store not initialised")
	}
	if prefix == "" {
		return "", errors.New("sequence prefix required")
	}
	if day.IsZero() {
		day = time.Now().UTC()
	}
	dayKey := day.UTC().Format("20060102")

	var serial int64
	err := db.FromContext(ctx, s.pool).QueryRow(ctx, `INSERT INTO doc_sequences (prefix, day, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (prefix, day) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, prefix, dayKey).Scan(&serial)
	if err != nil {
		return "", fmt.Errorf("shared: next sequence %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, dayKey, serial), nil
}
