package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventsite/registry/internal/model"
)

// ErrAlreadyFulfilled is returned when a claim targets an item with no units left.
var ErrAlreadyFulfilled = errors.New("registry item already claimed or fulfilled")

// ClaimItem reserves one unit of an item and records an audit entry.
//
// The read, capacity check, increment and audit insert run in one transaction
// that holds the database write lock from BEGIN, so concurrent claims against
// the same item are serialized. The UPDATE is additionally conditioned on the
// counter value that was read, and a mismatch is reported as a conflict.
func ClaimItem(ctx context.Context, db *sql.DB, itemID int64, sourceAddress string) (*model.ClaimResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var claimed, needed int
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT quantity_claimed, quantity_needed, status FROM registry_items WHERE id = ?`, itemID,
	).Scan(&claimed, &needed, &status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking registry item: %w", err)
	}

	if status == model.StatusFulfilled || claimed >= needed {
		return nil, ErrAlreadyFulfilled
	}

	next := claimed + 1
	nextStatus := model.StatusFor(next, needed)
	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx,
		`UPDATE registry_items
		 SET quantity_claimed = ?, status = ?, last_claimed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity_claimed = ? AND status != ?`,
		next, nextStatus, now, itemID, claimed, model.StatusFulfilled,
	)
	if err != nil {
		return nil, fmt.Errorf("incrementing claimed quantity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking claimed rows: %w", err)
	}
	if n == 0 {
		return nil, ErrAlreadyFulfilled
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO claim_attempts (item_id, source_address, created_at) VALUES (?, ?, ?)`,
		itemID, nullString(sourceAddress), now,
	)
	if err != nil {
		return nil, fmt.Errorf("recording claim attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	return &model.ClaimResult{
		ItemID:          itemID,
		Status:          nextStatus,
		QuantityClaimed: next,
		QuantityNeeded:  needed,
		ClaimedAt:       now,
	}, nil
}

// ListClaimAttempts returns the audit entries for an item, newest first.
func ListClaimAttempts(ctx context.Context, db *sql.DB, itemID int64) ([]model.ClaimAttempt, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, source_address, created_at
		 FROM claim_attempts WHERE item_id = ?
		 ORDER BY created_at DESC, id DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claim attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.ClaimAttempt
	for rows.Next() {
		var a model.ClaimAttempt
		var source sql.NullString
		if err := rows.Scan(&a.ID, &a.ItemID, &source, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning claim attempt: %w", err)
		}
		a.SourceAddress = source.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountClaimAttempts returns the number of audit entries across all items.
func CountClaimAttempts(ctx context.Context, db *sql.DB) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claim_attempts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting claim attempts: %w", err)
	}
	return count, nil
}
