package reconciliation

import (
	"fmt"
	"time"

	"settlement-backoffice/internal/metrics"
	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/notifier"
	"settlement-backoffice/internal/repository"

	"github.com/google/uuid"
)

// runState is the in-memory bookkeeping of one engine pass: the candidate
// pools, the merchant-side index with its run-local claimed set, and the
// aggregates that become the run ledger.
type runState struct {
	run          *models.ReconciliationRun
	cfg          RunConfig
	bankPool     []models.TransactionRecord
	index        *matchIndex
	merchants    merchantAccumulator
	errs         []RunError
	knownCache   map[string]bool
	processed    int
	totalRecords int
}

// runMatching is the core pass: exact match, fallback fuzzy match,
// unmatched classification, then the merchant-side sweep.
func (s *Service) runMatching(st *runState) error {
	for i := range st.bankPool {
		bank := &st.bankPool[i]
		if err := s.matchBankRecord(st, bank); err != nil {
			return err
		}
		s.checkMerchantKnown(st, bank)
		st.processed++
		if st.processed%s.progressEvery == 0 {
			s.updateProgress(st.run.ID, st.processed, st.totalRecords)
		}
	}
	return s.sweepMerchantPool(st)
}

func (s *Service) matchBankRecord(st *runState, bank *models.TransactionRecord) error {
	now := time.Now().UTC()
	window := st.cfg.dateWindow()

	// Stage 1: exact composite-key match within the date window (inclusive).
	key := matchKey{externalID: bank.ExternalID, merchantID: bank.MerchantID, amount: bank.Amount}
	for _, cand := range st.index.exactCandidates(key) {
		if absDuration(bank.OccurredAt.Sub(cand.OccurredAt)) > window {
			continue
		}
		claimed, err := s.store.ClaimPair(bank.ID, cand.ID,
			matchedUpdate(st.run.ID, cand.ID, now),
			matchedUpdate(st.run.ID, bank.ID, now),
		)
		if err != nil {
			return fmt.Errorf("claim matched pair %s/%s: %w", bank.ID, cand.ID, err)
		}
		if !claimed {
			metrics.ClaimConflicts.Inc()
			continue
		}
		st.index.claim(cand.ID)
		s.recordMatch(st, bank, cand, models.AuditMatched, "exact key match")
		return nil
	}

	// Stage 2: fallback on externalID+merchantID only, amount ignored.
	rk := refKey{externalID: bank.ExternalID, merchantID: bank.MerchantID}
	for _, cand := range st.index.fallbackCandidates(rk) {
		diff := abs64(bank.Amount - cand.Amount)
		if diff <= st.cfg.AmountTolerance {
			claimed, err := s.store.ClaimPair(bank.ID, cand.ID,
				matchedUpdate(st.run.ID, cand.ID, now),
				matchedUpdate(st.run.ID, bank.ID, now),
			)
			if err != nil {
				return fmt.Errorf("claim tolerant pair %s/%s: %w", bank.ID, cand.ID, err)
			}
			if !claimed {
				metrics.ClaimConflicts.Inc()
				continue
			}
			st.index.claim(cand.ID)
			reason := fmt.Sprintf("tolerant match: bank %d vs merchant %d within tolerance %d",
				bank.Amount, cand.Amount, st.cfg.AmountTolerance)
			s.recordMatch(st, bank, cand, models.AuditTolerantMatch, reason)
			return nil
		}

		reason := fmt.Sprintf("amount mismatch: bank %d vs merchant %d (diff %d)",
			bank.Amount, cand.Amount, diff)
		claimed, err := s.store.ClaimPair(bank.ID, cand.ID,
			mismatchUpdate(st.run.ID, diff, reason, now),
			mismatchUpdate(st.run.ID, diff, reason, now),
		)
		if err != nil {
			return fmt.Errorf("claim mismatched pair %s/%s: %w", bank.ID, cand.ID, err)
		}
		if !claimed {
			metrics.ClaimConflicts.Inc()
			continue
		}
		st.index.claim(cand.ID)
		s.recordMismatch(st, bank, cand, diff, reason)
		return nil
	}

	// Stage 3: no counterpart at all.
	claimed, err := s.store.ClaimStatus(bank.ID, repository.StatusUpdate{
		Status:       models.StatusUnmatchedBank,
		RunID:        st.run.ID,
		ReconciledAt: now,
	})
	if err != nil {
		return fmt.Errorf("claim unmatched bank record %s: %w", bank.ID, err)
	}
	if !claimed {
		// A concurrent run got there first; this record is not ours to count.
		metrics.ClaimConflicts.Inc()
		s.logger.Warn("bank record claimed by another run", "transaction_id", bank.ID, "run_id", st.run.ID)
		return nil
	}

	st.run.UnmatchedBank++
	st.run.UnmatchedBankAmount += bank.Amount
	st.merchants.entry(bank.MerchantID).Unmatched++
	metrics.RecordsProcessed.WithLabelValues("unmatched_bank").Inc()
	s.appendAudit(st.run.ID, &bank.ID, nil, models.AuditUnmatchedBank, "no merchant-side counterpart")
	return nil
}

// sweepMerchantPool transitions every merchant-side record not claimed
// during the bank loop to UNMATCHED_MERCHANT.
func (s *Service) sweepMerchantPool(st *runState) error {
	now := time.Now().UTC()
	for _, rec := range st.index.unclaimed() {
		claimed, err := s.store.ClaimStatus(rec.ID, repository.StatusUpdate{
			Status:       models.StatusUnmatchedMerchant,
			RunID:        st.run.ID,
			ReconciledAt: now,
		})
		if err != nil {
			return fmt.Errorf("claim unmatched merchant record %s: %w", rec.ID, err)
		}
		if !claimed {
			metrics.ClaimConflicts.Inc()
			s.logger.Warn("merchant record claimed by another run", "transaction_id", rec.ID, "run_id", st.run.ID)
			continue
		}

		st.run.UnmatchedMerchant++
		st.run.UnmatchedMerchantAmount += rec.Amount
		st.merchants.entry(rec.MerchantID).Unmatched++
		metrics.RecordsProcessed.WithLabelValues("unmatched_merchant").Inc()
		s.appendAudit(st.run.ID, nil, &rec.ID, models.AuditUnmatchedMerchant, "no bank-side counterpart")

		st.processed++
		if st.processed%s.progressEvery == 0 {
			s.updateProgress(st.run.ID, st.processed, st.totalRecords)
		}
	}
	return nil
}

// recordMatch books an exact or tolerant match. Matched amounts always sum
// the bank-side amount.
func (s *Service) recordMatch(st *runState, bank, cand *models.TransactionRecord, action, reason string) {
	st.run.Matched++
	st.run.MatchedAmount += bank.Amount
	entry := st.merchants.entry(bank.MerchantID)
	entry.Matched++
	entry.TotalAmount += bank.Amount
	metrics.RecordsProcessed.WithLabelValues(action).Inc()
	s.appendAudit(st.run.ID, &bank.ID, &cand.ID, action, reason)
}

func (s *Service) recordMismatch(st *runState, bank, cand *models.TransactionRecord, diff int64, reason string) {
	st.run.AmountMismatch++
	st.run.DisputesDetected++
	st.run.MismatchDifference += diff
	st.merchants.entry(bank.MerchantID).Mismatches++
	metrics.RecordsProcessed.WithLabelValues("amount_mismatch").Inc()
	metrics.DisputesDetected.Inc()
	s.appendAudit(st.run.ID, &bank.ID, &cand.ID, models.AuditAmountMismatch, reason)

	alert := notifier.DisputeAlert{
		RunID:                 st.run.ID,
		BankTransactionID:     bank.ID,
		MerchantTransactionID: cand.ID,
		ExternalID:            bank.ExternalID,
		MerchantID:            bank.MerchantID,
		BankAmount:            bank.Amount,
		MerchantAmount:        cand.Amount,
		DisputeAmount:         diff,
		Reason:                reason,
		Severity:              notifier.SeverityHigh,
		OccurredAt:            time.Now().UTC(),
	}
	if err := s.notifier.EmitDispute(alert); err != nil {
		// Fire-and-forget: a notifier failure never fails the run.
		s.logger.Error("dispute alert failed", "run_id", st.run.ID, "err", err)
	}
}

// checkMerchantKnown counts bank records whose merchant id is missing from
// the registry. Lookup errors are logged and ignored; the check never
// alters the matching outcome.
func (s *Service) checkMerchantKnown(st *runState, bank *models.TransactionRecord) {
	known, ok := st.knownCache[bank.MerchantID]
	if !ok {
		exists, err := s.registry.Exists(bank.MerchantID)
		if err != nil {
			s.logger.Warn("merchant registry lookup failed", "merchant_id", bank.MerchantID, "err", err)
			return
		}
		known = exists
		st.knownCache[bank.MerchantID] = known
	}
	if !known {
		st.run.UnknownMerchants++
	}
}

func (s *Service) appendAudit(runID uuid.UUID, bankID, merchantID *uuid.UUID, action, reason string) {
	entry := &models.MatchAuditLog{
		ID:                    uuid.New(),
		RunID:                 runID,
		BankTransactionID:     bankID,
		MerchantTransactionID: merchantID,
		Action:                action,
		Reason:                reason,
		CreatedAt:             time.Now().UTC(),
	}
	if err := s.store.AppendAudit(entry); err != nil {
		s.logger.Warn("audit log insert failed", "run_id", runID, "action", action, "err", err)
	}
}

func matchedUpdate(runID, counterpart uuid.UUID, at time.Time) repository.StatusUpdate {
	other := counterpart
	return repository.StatusUpdate{
		Status:       models.StatusMatched,
		MatchedWith:  &other,
		RunID:        runID,
		ReconciledAt: at,
	}
}

// mismatchUpdate leaves MatchedWith unset: the weak counterpart reference
// is only written on matched outcomes; disputes are linked via the audit log.
func mismatchUpdate(runID uuid.UUID, diff int64, reason string, at time.Time) repository.StatusUpdate {
	return repository.StatusUpdate{
		Status:        models.StatusAmountMismatch,
		RunID:         runID,
		IsDisputed:    true,
		DisputeReason: reason,
		DisputeAmount: diff,
		ReconciledAt:  at,
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
