package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eventsite/registry/internal/model"
)

var (
	// ErrNotFound is returned when a registry item does not exist.
	ErrNotFound = errors.New("registry item not found")
	// ErrQuantityBelowClaimed is returned when an edit would set quantity
	// needed below the units already claimed.
	ErrQuantityBelowClaimed = errors.New("quantity needed cannot be less than quantity claimed")
)

const itemColumns = `id, name, link, price, image_url, quantity_needed, quantity_claimed,
	status, last_claimed_at, created_at, updated_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// ItemUpdate carries the fields of a partial item edit. Nil fields are left unchanged.
type ItemUpdate struct {
	Name           *string
	Link           *string
	Price          *decimal.NullDecimal
	ImageURL       *string
	QuantityNeeded *int
}

func scanItem(row scanner) (*model.RegistryItem, error) {
	item := &model.RegistryItem{}
	var imageURL sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Link, &item.Price, &imageURL,
		&item.QuantityNeeded, &item.QuantityClaimed, &item.Status, &item.LastClaimedAt,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid && imageURL.String != "" {
		item.ImageURL = &imageURL.String
	}
	return item, nil
}

func getItem(ctx context.Context, q queryer, id int64) (*model.RegistryItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM registry_items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting registry item: %w", err)
	}
	return item, nil
}

// CreateItem creates a new registry item with nothing claimed.
func CreateItem(ctx context.Context, db *sql.DB, name, link string, price decimal.NullDecimal, imageURL string, quantityNeeded int) (*model.RegistryItem, error) {
	if quantityNeeded < 1 {
		return nil, fmt.Errorf("quantity needed must be positive")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO registry_items (name, link, price, image_url, quantity_needed, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, link, price, nullString(imageURL), quantityNeeded, model.StatusAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting registry item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns a registry item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.RegistryItem, error) {
	return getItem(ctx, db, id)
}

// ListItems returns all registry items in creation order, optionally filtered by status.
func ListItems(ctx context.Context, db *sql.DB, status string) ([]model.RegistryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM registry_items`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registry items: %w", err)
	}
	defer rows.Close()

	var items []model.RegistryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registry item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies a partial edit. Changing the needed quantity re-derives
// the status from the claimed/needed pair; other edits keep the current status.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, upd ItemUpdate) (*model.RegistryItem, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		item.Name = *upd.Name
	}
	if upd.Link != nil {
		item.Link = *upd.Link
	}
	if upd.Price != nil {
		item.Price = model.NewPrice(*upd.Price)
	}
	if upd.ImageURL != nil {
		item.ImageURL = upd.ImageURL
	}
	if upd.QuantityNeeded != nil {
		if *upd.QuantityNeeded < item.QuantityClaimed {
			return nil, ErrQuantityBelowClaimed
		}
		item.QuantityNeeded = *upd.QuantityNeeded
		item.Status = model.StatusFor(item.QuantityClaimed, item.QuantityNeeded)
	}

	var imageURL sql.NullString
	if item.ImageURL != nil {
		imageURL = nullString(*item.ImageURL)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE registry_items
		 SET name = ?, link = ?, price = ?, image_url = ?, quantity_needed = ?, status = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		item.Name, item.Link, item.Price, imageURL, item.QuantityNeeded, item.Status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating registry item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registry item update: %w", err)
	}
	return GetItem(ctx, db, id)
}

// SetItemStatus forces an item into status regardless of its quantities.
// Forcing AVAILABLE also resets the claimed quantity to zero.
func SetItemStatus(ctx context.Context, db *sql.DB, id int64, status string) (*model.RegistryItem, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var claimed int
	err = tx.QueryRowContext(ctx,
		`SELECT quantity_claimed FROM registry_items WHERE id = ?`, id,
	).Scan(&claimed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking registry item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE registry_items SET status = ?, quantity_claimed = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, model.OverrideQuantity(status, claimed), id,
	)
	if err != nil {
		return nil, fmt.Errorf("setting registry item status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}
	return GetItem(ctx, db, id)
}

// DeleteItem removes an item together with its claim audit entries.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM claim_attempts WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting claim attempts: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM registry_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting registry item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// SetItemImage stores an uploaded photo and points the item's image URL at it.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime, imageURL string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE registry_items SET image = ?, image_mime = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		image, mime, imageURL, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemImage returns an item's stored photo and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM registry_items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
