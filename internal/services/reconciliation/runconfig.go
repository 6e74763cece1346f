package reconciliation

import (
	"errors"
	"time"

	"settlement-backoffice/internal/repository"
)

// Config validation errors. A run that fails validation never reaches RUNNING.
var (
	ErrNegativeWindow    = errors.New("date window hours must be >= 0")
	ErrNegativeTolerance = errors.New("amount tolerance must be >= 0")
	ErrInvalidDateRange  = errors.New("date range start must not be after end")
)

// RunConfig is the fully resolved configuration of one reconciliation run.
// Defaults from the settings file are applied by the caller before this
// struct is built.
type RunConfig struct {
	DateWindowHours  int        `json:"date_window_hours"`
	AmountTolerance  int64      `json:"amount_tolerance"`
	IncludeMerchants []string   `json:"include_merchants,omitempty"`
	ExcludeMerchants []string   `json:"exclude_merchants,omitempty"`
	DateFrom         *time.Time `json:"date_from,omitempty"`
	DateTo           *time.Time `json:"date_to,omitempty"`
}

func (c RunConfig) Validate() error {
	if c.DateWindowHours < 0 {
		return ErrNegativeWindow
	}
	if c.AmountTolerance < 0 {
		return ErrNegativeTolerance
	}
	if c.DateFrom != nil && c.DateTo != nil && c.DateFrom.After(*c.DateTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// dateWindow returns the inclusive matching window as a duration.
func (c RunConfig) dateWindow() time.Duration {
	return time.Duration(c.DateWindowHours) * time.Hour
}

// pendingFilter builds the store filter for one side's candidate pool.
func (c RunConfig) pendingFilter(side string) repository.PendingFilter {
	return repository.PendingFilter{
		Side:             side,
		IncludeMerchants: c.IncludeMerchants,
		ExcludeMerchants: c.ExcludeMerchants,
		DateFrom:         c.DateFrom,
		DateTo:           c.DateTo,
	}
}
