package repository

import (
	"errors"
	"time"

	"settlement-backoffice/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingFilter selects the candidate pool for one side of a run.
type PendingFilter struct {
	Side             string
	IncludeMerchants []string
	ExcludeMerchants []string
	DateFrom         *time.Time
	DateTo           *time.Time
}

// StatusUpdate carries the fields written when a record leaves PENDING.
// Zero-valued optional fields are not written.
type StatusUpdate struct {
	Status        string
	MatchedWith   *uuid.UUID
	RunID         uuid.UUID
	IsDisputed    bool
	DisputeReason string
	DisputeAmount int64
	ReconciledAt  time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// FindPending loads all PENDING records for one side matching the filter,
// ordered by (occurred_at, id) so candidate order is reproducible.
func (r *TransactionRepository) FindPending(filter PendingFilter) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord

	query := r.db.
		Where("side = ? AND reconciliation_status = ?", filter.Side, models.StatusPending).
		Order("occurred_at ASC, id ASC")

	if len(filter.IncludeMerchants) > 0 {
		query = query.Where("merchant_id IN ?", filter.IncludeMerchants)
	}
	if len(filter.ExcludeMerchants) > 0 {
		query = query.Where("merchant_id NOT IN ?", filter.ExcludeMerchants)
	}
	if filter.DateFrom != nil {
		query = query.Where("occurred_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("occurred_at <= ?", *filter.DateTo)
	}

	err := query.Find(&records).Error
	return records, err
}

// ClaimStatus moves a single record out of PENDING with a conditional update.
// Returns false when the record was already claimed by another run.
func (r *TransactionRepository) ClaimStatus(id uuid.UUID, update StatusUpdate) (bool, error) {
	result := r.db.Model(&models.TransactionRecord{}).
		Where("id = ? AND reconciliation_status = ?", id, models.StatusPending).
		Updates(updateColumns(update))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimPair moves a bank record and its merchant counterpart out of PENDING
// inside one database transaction. Either both conditional updates take
// effect or neither does; a conflict on either side rolls the pair back.
func (r *TransactionRepository) ClaimPair(bankID, merchantID uuid.UUID, bankUpdate, merchantUpdate StatusUpdate) (bool, error) {
	claimed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TransactionRecord{}).
			Where("id = ? AND reconciliation_status = ?", bankID, models.StatusPending).
			Updates(updateColumns(bankUpdate))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}

		res = tx.Model(&models.TransactionRecord{}).
			Where("id = ? AND reconciliation_status = ?", merchantID, models.StatusPending).
			Updates(updateColumns(merchantUpdate))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}

		claimed = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// CountSLABreaches counts records reconciled by the given run that carry
// the SLA-breach flag. The flag itself is populated upstream.
func (r *TransactionRepository) CountSLABreaches(runID uuid.UUID) (int, error) {
	var count int64
	err := r.db.Model(&models.TransactionRecord{}).
		Where("run_id = ? AND sla_breached = ?", runID, true).
		Count(&count).Error
	return int(count), err
}

// Create inserts a new record.
func (r *TransactionRepository) Create(record *models.TransactionRecord) error {
	return r.db.Create(record).Error
}

// AppendAudit inserts one audit row.
func (r *TransactionRepository) AppendAudit(entry *models.MatchAuditLog) error {
	return r.db.Create(entry).Error
}

// ListByRun returns records touched by a run with cursor pagination and an
// optional status filter.
func (r *TransactionRepository) ListByRun(runID uuid.UUID, status, cursor string, limit int) ([]models.TransactionRecord, string, bool, error) {
	var records []models.TransactionRecord

	query := r.db.
		Where("run_id = ?", runID).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("reconciliation_status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(records) > limit {
		hasMore = true
		nextCursor = records[limit-1].ID.String()
		records = records[:limit]
	}
	return records, nextCursor, hasMore, nil
}

func updateColumns(u StatusUpdate) map[string]interface{} {
	cols := map[string]interface{}{
		"reconciliation_status": u.Status,
		"run_id":                u.RunID,
		"reconciled_at":         u.ReconciledAt,
	}
	if u.MatchedWith != nil {
		cols["matched_with"] = *u.MatchedWith
	}
	if u.IsDisputed {
		cols["is_disputed"] = true
		cols["dispute_reason"] = u.DisputeReason
		cols["dispute_amount"] = u.DisputeAmount
	}
	return cols
}
