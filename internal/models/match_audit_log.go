package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchAuditLog records one engine decision for a record it touched.
// Written best-effort; a failed insert never fails the run.
type MatchAuditLog struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID                 uuid.UUID  `gorm:"index" json:"run_id"`
	BankTransactionID     *uuid.UUID `gorm:"index" json:"bank_transaction_id,omitempty"`
	MerchantTransactionID *uuid.UUID `json:"merchant_transaction_id,omitempty"`
	Action                string     `json:"action"`
	Reason                string     `json:"reason"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Audit actions.
const (
	AuditMatched           = "matched"
	AuditTolerantMatch     = "tolerant_match"
	AuditAmountMismatch    = "amount_mismatch"
	AuditUnmatchedBank     = "unmatched_bank"
	AuditUnmatchedMerchant = "unmatched_merchant"
)
