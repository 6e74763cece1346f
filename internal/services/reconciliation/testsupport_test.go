package reconciliation

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/notifier"
	"settlement-backoffice/internal/repository"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory TransactionStore honouring the same conditional
// update semantics as the Postgres repository.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.TransactionRecord
	audits  []models.MatchAuditLog

	failFindPending bool
	failClaims      bool
	failSLACount    bool

	// stealAfterLoad simulates a concurrent run claiming this record right
	// after the pools were read: it stays in the returned pool but is no
	// longer PENDING in the store.
	stealAfterLoad uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*models.TransactionRecord)}
}

func (s *memStore) add(rec models.TransactionRecord) *models.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.records[r.ID] = &r
	return &r
}

func (s *memStore) get(id uuid.UUID) models.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[id]
}

func (s *memStore) FindPending(filter repository.PendingFilter) ([]models.TransactionRecord, error) {
	if s.failFindPending {
		return nil, errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TransactionRecord
	for _, rec := range s.records {
		if rec.Side != filter.Side || rec.ReconciliationStatus != models.StatusPending {
			continue
		}
		if len(filter.IncludeMerchants) > 0 && !contains(filter.IncludeMerchants, rec.MerchantID) {
			continue
		}
		if contains(filter.ExcludeMerchants, rec.MerchantID) {
			continue
		}
		if filter.DateFrom != nil && rec.OccurredAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && rec.OccurredAt.After(*filter.DateTo) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if stolen, ok := s.records[s.stealAfterLoad]; ok && stolen.Side == filter.Side &&
		stolen.ReconciliationStatus == models.StatusPending {
		stolen.ReconciliationStatus = models.StatusMatched
	}
	return out, nil
}

func (s *memStore) ClaimStatus(id uuid.UUID, update repository.StatusUpdate) (bool, error) {
	if s.failClaims {
		return false, errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimLocked(id, update), nil
}

func (s *memStore) ClaimPair(bankID, merchantID uuid.UUID, bankUpdate, merchantUpdate repository.StatusUpdate) (bool, error) {
	if s.failClaims {
		return false, errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, merchant := s.records[bankID], s.records[merchantID]
	if bank == nil || merchant == nil ||
		bank.ReconciliationStatus != models.StatusPending ||
		merchant.ReconciliationStatus != models.StatusPending {
		return false, nil
	}
	s.claimLocked(bankID, bankUpdate)
	s.claimLocked(merchantID, merchantUpdate)
	return true, nil
}

func (s *memStore) claimLocked(id uuid.UUID, update repository.StatusUpdate) bool {
	rec, ok := s.records[id]
	if !ok || rec.ReconciliationStatus != models.StatusPending {
		return false
	}
	rec.ReconciliationStatus = update.Status
	rec.MatchedWith = update.MatchedWith
	runID := update.RunID
	rec.RunID = &runID
	rec.IsDisputed = update.IsDisputed
	rec.DisputeReason = update.DisputeReason
	rec.DisputeAmount = update.DisputeAmount
	at := update.ReconciledAt
	rec.ReconciledAt = &at
	return true
}

func (s *memStore) CountSLABreaches(runID uuid.UUID) (int, error) {
	if s.failSLACount {
		return 0, errStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.records {
		if rec.RunID != nil && *rec.RunID == runID && rec.SLABreached {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AppendAudit(entry *models.MatchAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *memStore) Create(record *models.TransactionRecord) error {
	s.add(*record)
	return nil
}

func (s *memStore) ListByRun(runID uuid.UUID, status, cursor string, limit int) ([]models.TransactionRecord, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransactionRecord
	for _, rec := range s.records {
		if rec.RunID == nil || *rec.RunID != runID {
			continue
		}
		if status != "" && status != "all" && rec.ReconciliationStatus != status {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, "", false, nil
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

// memRuns is an in-memory RunStore.
type memRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]models.ReconciliationRun
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[uuid.UUID]models.ReconciliationRun)}
}

func (r *memRuns) Create(run *models.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memRuns) Save(run *models.ReconciliationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memRuns) GetByID(id uuid.UUID) (*models.ReconciliationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	return &run, nil
}

func (r *memRuns) List(limit int) ([]models.ReconciliationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReconciliationRun
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRuns) MarkCancelled(id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status != models.RunRunning {
		return false, nil
	}
	run.Status = models.RunCancelled
	r.runs[id] = run
	return true, nil
}

// memRegistry is an in-memory MerchantRegistry.
type memRegistry struct {
	known   map[string]bool
	failAll bool
}

func newMemRegistry(ids ...string) *memRegistry {
	known := make(map[string]bool)
	for _, id := range ids {
		known[id] = true
	}
	return &memRegistry{known: known}
}

func (r *memRegistry) Exists(merchantID string) (bool, error) {
	if r.failAll {
		return false, errStoreDown
	}
	return r.known[merchantID], nil
}

// recordingNotifier captures emitted alerts.
type recordingNotifier struct {
	mu          sync.Mutex
	disputes    []notifier.DisputeAlert
	completions []notifier.CompletionAlert
	failAll     bool
}

func (n *recordingNotifier) EmitDispute(alert notifier.DisputeAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return errStoreDown
	}
	n.disputes = append(n.disputes, alert)
	return nil
}

func (n *recordingNotifier) EmitCompletion(alert notifier.CompletionAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return errStoreDown
	}
	n.completions = append(n.completions, alert)
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type fixture struct {
	store    *memStore
	registry *memRegistry
	runs     *memRuns
	notes    *recordingNotifier
	service  *Service
}

func newFixture(knownMerchants ...string) *fixture {
	f := &fixture{
		store:    newMemStore(),
		registry: newMemRegistry(knownMerchants...),
		runs:     newMemRuns(),
		notes:    &recordingNotifier{},
	}
	f.service = NewService(f.store, f.registry, f.runs, f.notes,
		slog.New(slog.NewTextHandler(io.Discard, nil)), 100)
	return f
}

func bankRecord(externalID, merchantID string, amount int64, occurredAt time.Time) models.TransactionRecord {
	return record(externalID, merchantID, models.SideBank, amount, occurredAt)
}

func merchantRecord(externalID, merchantID string, amount int64, occurredAt time.Time) models.TransactionRecord {
	return record(externalID, merchantID, models.SideMerchant, amount, occurredAt)
}

func record(externalID, merchantID, side string, amount int64, occurredAt time.Time) models.TransactionRecord {
	return models.TransactionRecord{
		ID:                   uuid.New(),
		ExternalID:           externalID,
		MerchantID:           merchantID,
		Amount:               amount,
		Currency:             "USD",
		OccurredAt:           occurredAt,
		Side:                 side,
		ReconciliationStatus: models.StatusPending,
		CreatedAt:            occurredAt,
	}
}
