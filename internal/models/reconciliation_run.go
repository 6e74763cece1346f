package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run statuses. CANCELLED is only ever set by an external caller.
const (
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
	RunCancelled = "CANCELLED"
)

// ReconciliationRun is the append-only ledger of one engine invocation:
// the config it ran with, aggregate summary, per-merchant breakdown and
// any errors collected before a failure.
type ReconciliationRun struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Status string    `gorm:"index" json:"status"`

	// Config snapshot.
	DateWindowHours  int            `json:"date_window_hours"`
	AmountTolerance  int64          `json:"amount_tolerance"`
	IncludeMerchants datatypes.JSON `json:"include_merchants,omitempty"`
	ExcludeMerchants datatypes.JSON `json:"exclude_merchants,omitempty"`
	DateFrom         *time.Time     `json:"date_from,omitempty"`
	DateTo           *time.Time     `json:"date_to,omitempty"`

	// Summary counts.
	TotalBank         int `json:"total_bank"`
	TotalMerchant     int `json:"total_merchant"`
	Matched           int `json:"matched"`
	UnmatchedBank     int `json:"unmatched_bank"`
	UnmatchedMerchant int `json:"unmatched_merchant"`
	AmountMismatch    int `json:"amount_mismatch"`
	DisputesDetected  int `json:"disputes_detected"`
	SLABreaches       int `gorm:"column:sla_breaches" json:"sla_breaches"`
	UnknownMerchants  int `json:"unknown_merchants"`

	// Summed amounts, smallest currency unit.
	MatchedAmount           int64 `json:"matched_amount"`
	UnmatchedBankAmount     int64 `json:"unmatched_bank_amount"`
	UnmatchedMerchantAmount int64 `json:"unmatched_merchant_amount"`
	MismatchDifference      int64 `json:"mismatch_difference"`

	MerchantSummary datatypes.JSON `json:"merchant_summary,omitempty"`
	Errors          datatypes.JSON `json:"errors,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
}
