package model

import "time"

// ClaimAttempt is an audit entry for one accepted claim.
type ClaimAttempt struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"itemId"`
	SourceAddress string    `json:"sourceAddress,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	ItemID          int64     `json:"-"`
	Status          string    `json:"status"`
	QuantityClaimed int       `json:"quantityClaimed"`
	QuantityNeeded  int       `json:"-"`
	ClaimedAt       time.Time `json:"-"`
}
