package reconciliation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"settlement-backoffice/internal/metrics"
	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/notifier"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Service orchestrates reconciliation runs: candidate loading, the matching
// pass, run-ledger assembly and notification.
type Service struct {
	store         TransactionStore
	registry      MerchantRegistry
	runs          RunStore
	notifier      notifier.Notifier
	logger        *slog.Logger
	progressEvery int
	progressCache sync.Map // run id -> *Progress
}

// Progress is the live state of a run, served from memory while it executes.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
}

func NewService(store TransactionStore, registry MerchantRegistry, runs RunStore, n notifier.Notifier, logger *slog.Logger, progressEvery int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &Service{
		store:         store,
		registry:      registry,
		runs:          runs,
		notifier:      n,
		logger:        logger,
		progressEvery: progressEvery,
	}
}

// RunReconciliation executes one full reconciliation pass. The caller always
// gets either a COMPLETED run with a full summary or a FAILED run with the
// partial summary plus error detail; config errors are returned before any
// run row exists.
func (s *Service) RunReconciliation(cfg RunConfig) (*models.ReconciliationRun, error) {
	st, err := s.prepareRun(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.execute(st); err != nil {
		return s.fail(st, err)
	}
	return s.complete(st)
}

// StartRunAsync validates and creates the run, then executes the pass in a
// background goroutine. The returned snapshot is the RUNNING row; progress
// and the final ledger are available through RunProgress and GetRun.
func (s *Service) StartRunAsync(cfg RunConfig) (*models.ReconciliationRun, error) {
	st, err := s.prepareRun(cfg)
	if err != nil {
		return nil, err
	}
	snapshot := *st.run
	go func() {
		if err := s.execute(st); err != nil {
			s.fail(st, err)
			return
		}
		s.complete(st)
	}()
	return &snapshot, nil
}

// prepareRun rejects invalid configs before any state exists, then persists
// the RUNNING row.
func (s *Service) prepareRun(cfg RunConfig) (*runState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	run := buildRun(cfg)
	if err := s.runs.Create(run); err != nil {
		return nil, fmt.Errorf("create run ledger: %w", err)
	}
	metrics.RunsStarted.Inc()
	s.logger.Info("reconciliation run started",
		"run_id", run.ID,
		"date_window_hours", cfg.DateWindowHours,
		"amount_tolerance", cfg.AmountTolerance,
	)

	return &runState{
		run:        run,
		cfg:        cfg,
		merchants:  make(merchantAccumulator),
		knownCache: make(map[string]bool),
	}, nil
}

// execute loads the candidate pools, builds the index and runs the matching
// pass. Per-record claims committed before a failure stay committed.
func (s *Service) execute(st *runState) error {
	bankPool, err := s.store.FindPending(st.cfg.pendingFilter(models.SideBank))
	if err != nil {
		return fmt.Errorf("load bank pool: %w", err)
	}
	merchantPool, err := s.store.FindPending(st.cfg.pendingFilter(models.SideMerchant))
	if err != nil {
		return fmt.Errorf("load merchant pool: %w", err)
	}

	st.bankPool = bankPool
	st.index = newMatchIndex(merchantPool)
	st.run.TotalBank = len(bankPool)
	st.run.TotalMerchant = len(merchantPool)
	st.totalRecords = len(bankPool) + len(merchantPool)
	s.updateProgress(st.run.ID, 0, st.totalRecords)

	return s.runMatching(st)
}

// complete finalizes a successful pass: SLA breach count, per-merchant
// breakdown, terminal COMPLETED state, completion alert.
func (s *Service) complete(st *runState) (*models.ReconciliationRun, error) {
	run := st.run

	breaches, err := s.store.CountSLABreaches(run.ID)
	if err != nil {
		return s.fail(st, fmt.Errorf("count sla breaches: %w", err))
	}
	run.SLABreaches = breaches
	run.MerchantSummary = datatypes.JSON(st.merchants.marshal())
	run.Errors = datatypes.JSON(marshalErrors(st.errs))

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.DurationMs = now.Sub(run.StartedAt).Milliseconds()

	// An external cancel that landed mid-pass wins over COMPLETED.
	status := models.RunCompleted
	if current, err := s.runs.GetByID(run.ID); err == nil && current.Status == models.RunCancelled {
		status = models.RunCancelled
	}
	run.Status = status

	if err := s.runs.Save(run); err != nil {
		return s.fail(st, fmt.Errorf("persist run ledger: %w", err))
	}

	s.finishProgress(run.ID, st.totalRecords, status)
	metrics.RunsCompleted.WithLabelValues(status).Inc()
	metrics.RunDuration.Observe(now.Sub(run.StartedAt).Seconds())

	if status == models.RunCompleted {
		alert := notifier.CompletionAlert{
			RunID:             run.ID,
			Status:            run.Status,
			TotalBank:         run.TotalBank,
			TotalMerchant:     run.TotalMerchant,
			Matched:           run.Matched,
			UnmatchedBank:     run.UnmatchedBank,
			UnmatchedMerchant: run.UnmatchedMerchant,
			AmountMismatch:    run.AmountMismatch,
			DurationMs:        run.DurationMs,
			CompletedAt:       now,
		}
		if err := s.notifier.EmitCompletion(alert); err != nil {
			s.logger.Error("completion alert failed", "run_id", run.ID, "err", err)
		}
	}

	s.logger.Info("reconciliation run finished",
		"run_id", run.ID,
		"status", run.Status,
		"matched", run.Matched,
		"unmatched_bank", run.UnmatchedBank,
		"unmatched_merchant", run.UnmatchedMerchant,
		"amount_mismatch", run.AmountMismatch,
		"duration_ms", run.DurationMs,
	)
	return run, nil
}

// fail records the fault on the run ledger, persists the partial summary and
// reports the failure to the caller. Committed per-record updates are not
// rolled back.
func (s *Service) fail(st *runState, cause error) (*models.ReconciliationRun, error) {
	run := st.run
	st.errs = append(st.errs, RunError{Message: cause.Error(), Timestamp: time.Now().UTC()})

	run.Status = models.RunFailed
	run.MerchantSummary = datatypes.JSON(st.merchants.marshal())
	run.Errors = datatypes.JSON(marshalErrors(st.errs))

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.DurationMs = now.Sub(run.StartedAt).Milliseconds()

	if saveErr := s.runs.Save(run); saveErr != nil {
		s.logger.Error("failed run could not be persisted", "run_id", run.ID, "err", saveErr)
	}

	s.finishProgress(run.ID, st.processed, models.RunFailed)
	metrics.RunsCompleted.WithLabelValues(models.RunFailed).Inc()
	s.logger.Error("reconciliation run failed", "run_id", run.ID, "err", cause)
	return run, fmt.Errorf("reconciliation run %s failed: %w", run.ID, cause)
}

// GetRun fetches one run row.
func (s *Service) GetRun(id uuid.UUID) (*models.ReconciliationRun, error) {
	return s.runs.GetByID(id)
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(limit int) ([]models.ReconciliationRun, error) {
	return s.runs.List(limit)
}

// CancelRun applies the external CANCELLED transition. It only succeeds
// while the run is still RUNNING; the matching pass itself is not
// interrupted.
func (s *Service) CancelRun(id uuid.UUID) (bool, error) {
	return s.runs.MarkCancelled(id)
}

// ListRunTransactions pages through the records a run touched.
func (s *Service) ListRunTransactions(runID uuid.UUID, status, cursor string, limit int) ([]models.TransactionRecord, string, bool, error) {
	return s.store.ListByRun(runID, status, cursor, limit)
}

// IngestTransaction creates a PENDING record, the state every record is in
// before any run touches it.
func (s *Service) IngestTransaction(externalID, merchantID, currency, side string, amount int64, occurredAt time.Time) (*models.TransactionRecord, error) {
	if amount < 0 {
		return nil, fmt.Errorf("amount must be >= 0")
	}
	if side != models.SideBank && side != models.SideMerchant {
		return nil, fmt.Errorf("side must be %s or %s", models.SideBank, models.SideMerchant)
	}
	record := &models.TransactionRecord{
		ID:                   uuid.New(),
		ExternalID:           externalID,
		MerchantID:           merchantID,
		Amount:               amount,
		Currency:             currency,
		OccurredAt:           occurredAt,
		Side:                 side,
		ReconciliationStatus: models.StatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.Create(record); err != nil {
		return nil, fmt.Errorf("create transaction record: %w", err)
	}
	return record, nil
}

// RunProgress returns the cached live progress of a run.
func (s *Service) RunProgress(runID uuid.UUID) (*Progress, bool) {
	val, ok := s.progressCache.Load(runID)
	if !ok {
		return nil, false
	}
	return val.(*Progress), true
}

func (s *Service) updateProgress(runID uuid.UUID, processed, total int) {
	s.progressCache.Store(runID, &Progress{
		Processed: processed,
		Total:     total,
		Status:    models.RunRunning,
	})
}

func (s *Service) finishProgress(runID uuid.UUID, processed int, status string) {
	s.progressCache.Store(runID, &Progress{
		Processed: processed,
		Total:     processed,
		Status:    status,
	})
}

func buildRun(cfg RunConfig) *models.ReconciliationRun {
	now := time.Now().UTC()
	run := &models.ReconciliationRun{
		ID:              uuid.New(),
		Status:          models.RunRunning,
		DateWindowHours: cfg.DateWindowHours,
		AmountTolerance: cfg.AmountTolerance,
		DateFrom:        cfg.DateFrom,
		DateTo:          cfg.DateTo,
		StartedAt:       now,
		CreatedAt:       now,
	}
	if len(cfg.IncludeMerchants) > 0 {
		raw, _ := json.Marshal(cfg.IncludeMerchants)
		run.IncludeMerchants = datatypes.JSON(raw)
	}
	if len(cfg.ExcludeMerchants) > 0 {
		raw, _ := json.Marshal(cfg.ExcludeMerchants)
		run.ExcludeMerchants = datatypes.JSON(raw)
	}
	return run
}
