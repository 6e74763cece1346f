package models

import (
	"time"

	"github.com/google/uuid"
)

// Side of the feed a record came from.
const (
	SideBank     = "BANK"
	SideMerchant = "MERCHANT"
)

// Reconciliation statuses. DUPLICATE is assigned by ingestion, never by the engine.
const (
	StatusPending           = "PENDING"
	StatusMatched           = "MATCHED"
	StatusUnmatchedBank     = "UNMATCHED_BANK"
	StatusUnmatchedMerchant = "UNMATCHED_MERCHANT"
	StatusAmountMismatch    = "AMOUNT_MISMATCH"
	StatusDuplicate         = "DUPLICATE"
)

// TransactionRecord is one payment event from one side (bank or merchant).
// Amount is in the smallest currency unit, already normalized by ingestion.
type TransactionRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID string    `gorm:"index" json:"external_id"`
	MerchantID string    `gorm:"index" json:"merchant_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
	Side       string    `gorm:"index" json:"side"`

	ReconciliationStatus string     `gorm:"index" json:"reconciliation_status"`
	MatchedWith          *uuid.UUID `json:"matched_with,omitempty"`
	RunID                *uuid.UUID `gorm:"index" json:"run_id,omitempty"`
	IsDisputed           bool       `json:"is_disputed"`
	DisputeReason        string     `json:"dispute_reason,omitempty"`
	DisputeAmount        int64      `json:"dispute_amount,omitempty"`
	SLABreached          bool       `gorm:"column:sla_breached" json:"sla_breached"`
	ReconciledAt         *time.Time `json:"reconciled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}
