package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item statuses.
const (
	StatusAvailable = "AVAILABLE"
	StatusClaimed   = "CLAIMED"
	StatusFulfilled = "FULFILLED"
)

// Price is an optional amount that is sent to clients as a JSON number
// (or null). It stores and scans like decimal.NullDecimal.
type Price struct {
	decimal.NullDecimal
}

// NewPrice wraps an optional decimal.
func NewPrice(d decimal.NullDecimal) Price {
	return Price{NullDecimal: d}
}

// MarshalJSON encodes the amount unquoted.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Decimal.String()), nil
}

// RegistryItem is one giftable item on the registry.
type RegistryItem struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Link            string              `json:"link"`
	Price           Price               `json:"price"`
	ImageURL        *string             `json:"imageUrl"`
	QuantityNeeded  int                 `json:"quantityNeeded"`
	QuantityClaimed int                 `json:"quantityClaimed"`
	Status          string              `json:"status"`
	LastClaimedAt   *time.Time          `json:"lastClaimed"`
	CreatedAt       time.Time           `json:"-"`
	UpdatedAt       time.Time           `json:"-"`
}

// Remaining returns how many units can still be claimed.
func (i *RegistryItem) Remaining() int {
	if i.Status == StatusFulfilled || i.QuantityClaimed >= i.QuantityNeeded {
		return 0
	}
	return i.QuantityNeeded - i.QuantityClaimed
}

// StatusFor derives the status implied by the claimed and needed quantities.
func StatusFor(claimed, needed int) string {
	switch {
	case claimed >= needed:
		return StatusFulfilled
	case claimed > 0:
		return StatusClaimed
	default:
		return StatusAvailable
	}
}

// ParseStatus normalizes a status name, accepting any letter case.
func ParseStatus(s string) (string, error) {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case StatusAvailable, StatusClaimed, StatusFulfilled:
		return v, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

// OverrideQuantity returns the claimed quantity an item keeps when an
// administrator forces it into status. Re-listing as AVAILABLE resets the
// counter; CLAIMED and FULFILLED leave it untouched.
func OverrideQuantity(status string, claimed int) int {
	if status == StatusAvailable {
		return 0
	}
	return claimed
}
