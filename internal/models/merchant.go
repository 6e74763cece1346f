package models

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is a registry row. The engine only checks existence; records
// referencing merchant ids missing from the registry are counted as
// unknown-merchant occurrences, non-blocking.
type Merchant struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID string    `gorm:"uniqueIndex" json:"merchant_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
