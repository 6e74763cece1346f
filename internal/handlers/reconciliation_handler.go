package handler

import (
	"net/http"
	"strconv"
	"time"

	"settlement-backoffice/internal/config"
	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/repository"
	service "settlement-backoffice/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReconciliationHandler struct {
	service      *service.Service
	merchantRepo *repository.MerchantRepository
	settings     *config.Loader
}

func NewReconciliationHandler(s *service.Service, merchantRepo *repository.MerchantRepository, settings *config.Loader) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, merchantRepo: merchantRepo, settings: settings}
}

// StartRun validates the posted config, fills omitted fields from the
// current defaults file and launches the run in the background.
func (h *ReconciliationHandler) StartRun(c *gin.Context) {
	var payload struct {
		DateWindowHours  *int       `json:"date_window_hours"`
		AmountTolerance  *int64     `json:"amount_tolerance"`
		IncludeMerchants []string   `json:"include_merchants"`
		ExcludeMerchants []string   `json:"exclude_merchants"`
		DateFrom         *time.Time `json:"date_from"`
		DateTo           *time.Time `json:"date_to"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	defaults := h.settings.Settings()
	cfg := service.RunConfig{
		DateWindowHours:  defaults.Engine.DateWindowHours,
		AmountTolerance:  defaults.Engine.AmountTolerance,
		IncludeMerchants: payload.IncludeMerchants,
		ExcludeMerchants: payload.ExcludeMerchants,
		DateFrom:         payload.DateFrom,
		DateTo:           payload.DateTo,
	}
	if payload.DateWindowHours != nil {
		cfg.DateWindowHours = *payload.DateWindowHours
	}
	if payload.AmountTolerance != nil {
		cfg.AmountTolerance = *payload.AmountTolerance
	}

	run, err := h.service.StartRunAsync(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": run.ID.String(),
		"status": run.Status,
	})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	run, err := h.service.GetRun(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	runs, err := h.service.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetRunProgress serves the in-memory progress cache while a run executes,
// falling back to the persisted row for finished runs.
func (h *ReconciliationHandler) GetRunProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	if progress, ok := h.service.RunProgress(id); ok {
		c.JSON(http.StatusOK, progress)
		return
	}

	run, err := h.service.GetRun(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": run.TotalBank + run.TotalMerchant,
		"total":     run.TotalBank + run.TotalMerchant,
		"status":    run.Status,
	})
}

func (h *ReconciliationHandler) ListRunTransactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	status := c.Query("status")
	cursor := c.Query("cursor")
	limit := 50

	items, nextCursor, hasMore, err := h.service.ListRunTransactions(id, status, cursor, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

func (h *ReconciliationHandler) CancelRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	cancelled, err := h.service.CancelRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "run is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "run cancelled"})
}

func (h *ReconciliationHandler) CreateTransaction(c *gin.Context) {
	var payload struct {
		ExternalID string    `json:"external_id"`
		MerchantID string    `json:"merchant_id"`
		Amount     int64     `json:"amount"`
		Currency   string    `json:"currency"`
		OccurredAt time.Time `json:"occurred_at"`
		Side       string    `json:"side"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.ExternalID == "" || payload.MerchantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_id and merchant_id are required"})
		return
	}

	record, err := h.service.IngestTransaction(
		payload.ExternalID, payload.MerchantID, payload.Currency,
		payload.Side, payload.Amount, payload.OccurredAt,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *ReconciliationHandler) CreateMerchant(c *gin.Context) {
	var payload struct {
		MerchantID string `json:"merchant_id"`
		Name       string `json:"name"`
		Status     string `json:"status"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.MerchantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "merchant_id is required"})
		return
	}

	merchant := &models.Merchant{
		ID:         uuid.New(),
		MerchantID: payload.MerchantID,
		Name:       payload.Name,
		Status:     payload.Status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.merchantRepo.Create(merchant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, merchant)
}

func (h *ReconciliationHandler) ListMerchants(c *gin.Context) {
	merchants, err := h.merchantRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": merchants})
}
