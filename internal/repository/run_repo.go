package repository

import (
	"settlement-backoffice/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create persists the run row in its initial RUNNING state.
func (r *RunRepository) Create(run *models.ReconciliationRun) error {
	return r.db.Create(run).Error
}

// Save writes the finalized (or partially finalized) run row.
func (r *RunRepository) Save(run *models.ReconciliationRun) error {
	return r.db.Save(run).Error
}

// GetByID fetches a single run.
func (r *RunRepository) GetByID(id uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	if err := r.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs, newest first.
func (r *RunRepository) List(limit int) ([]models.ReconciliationRun, error) {
	var runs []models.ReconciliationRun
	err := r.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// MarkCancelled transitions a RUNNING run to CANCELLED. Returns false when
// the run already reached a terminal state.
func (r *RunRepository) MarkCancelled(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.ReconciliationRun{}).
		Where("id = ? AND status = ?", id, models.RunRunning).
		Update("status", models.RunCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
