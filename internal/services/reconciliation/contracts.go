package reconciliation

import (
	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/repository"

	"github.com/google/uuid"
)

// TransactionStore is the system of record for transaction records.
// Claim methods are conditional updates: they only take effect while the
// record is still PENDING, and report a conflict otherwise, so two
// concurrent runs can never claim the same candidate.
type TransactionStore interface {
	FindPending(filter repository.PendingFilter) ([]models.TransactionRecord, error)
	ClaimStatus(id uuid.UUID, update repository.StatusUpdate) (bool, error)
	ClaimPair(bankID, merchantID uuid.UUID, bankUpdate, merchantUpdate repository.StatusUpdate) (bool, error)
	CountSLABreaches(runID uuid.UUID) (int, error)
	AppendAudit(entry *models.MatchAuditLog) error
	Create(record *models.TransactionRecord) error
	ListByRun(runID uuid.UUID, status, cursor string, limit int) ([]models.TransactionRecord, string, bool, error)
}

// MerchantRegistry answers whether a merchant id is known. Lookups are
// advisory: a missing merchant is counted, never blocks matching.
type MerchantRegistry interface {
	Exists(merchantID string) (bool, error)
}

// RunStore persists the append-only run ledger.
type RunStore interface {
	Create(run *models.ReconciliationRun) error
	Save(run *models.ReconciliationRun) error
	GetByID(id uuid.UUID) (*models.ReconciliationRun, error)
	List(limit int) ([]models.ReconciliationRun, error)
	MarkCancelled(id uuid.UUID) (bool, error)
}
