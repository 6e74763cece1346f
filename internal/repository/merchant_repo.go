package repository

import (
	"errors"

	"settlement-backoffice/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

// Exists reports whether a merchant id is present in the registry.
func (r *MerchantRepository) Exists(merchantID string) (bool, error) {
	var merchant models.Merchant
	err := r.db.Select("id").First(&merchant, "merchant_id = ?", merchantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a merchant, ignoring duplicates on merchant_id.
func (r *MerchantRepository) Create(merchant *models.Merchant) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(merchant).Error
}

// List returns all registry rows.
func (r *MerchantRepository) List() ([]models.Merchant, error) {
	var merchants []models.Merchant
	err := r.db.Order("merchant_id ASC").Find(&merchants).Error
	return merchants, err
}
