package reconciliation

import (
	"sort"

	"settlement-backoffice/internal/models"

	"github.com/google/uuid"
)

// matchKey is the composite key of the first-pass exact lookup.
type matchKey struct {
	externalID string
	merchantID string
	amount     int64
}

// refKey keys the fallback lookup, which ignores the amount.
type refKey struct {
	externalID string
	merchantID string
}

// matchIndex is the in-memory multimap over the merchant-side pool, built
// once per run. Buckets are sorted by (occurredAt, id) ascending so the
// first-remaining-candidate tie-break is deterministic regardless of query
// order. The claimed set is run-local; the actual claim is the store's
// conditional update.
type matchIndex struct {
	pool    []models.TransactionRecord
	exact   map[matchKey][]*models.TransactionRecord
	byRef   map[refKey][]*models.TransactionRecord
	claimed map[uuid.UUID]bool
}

func newMatchIndex(pool []models.TransactionRecord) *matchIndex {
	ix := &matchIndex{
		pool:    pool,
		exact:   make(map[matchKey][]*models.TransactionRecord),
		byRef:   make(map[refKey][]*models.TransactionRecord),
		claimed: make(map[uuid.UUID]bool),
	}

	for i := range pool {
		rec := &pool[i]
		ek := matchKey{externalID: rec.ExternalID, merchantID: rec.MerchantID, amount: rec.Amount}
		ix.exact[ek] = append(ix.exact[ek], rec)
		rk := refKey{externalID: rec.ExternalID, merchantID: rec.MerchantID}
		ix.byRef[rk] = append(ix.byRef[rk], rec)
	}

	for _, bucket := range ix.exact {
		sortBucket(bucket)
	}
	for _, bucket := range ix.byRef {
		sortBucket(bucket)
	}
	return ix
}

func sortBucket(bucket []*models.TransactionRecord) {
	sort.Slice(bucket, func(i, j int) bool {
		if !bucket[i].OccurredAt.Equal(bucket[j].OccurredAt) {
			return bucket[i].OccurredAt.Before(bucket[j].OccurredAt)
		}
		return bucket[i].ID.String() < bucket[j].ID.String()
	})
}

// exactCandidates returns the unclaimed records sharing the full composite
// key, in bucket order.
func (ix *matchIndex) exactCandidates(key matchKey) []*models.TransactionRecord {
	return ix.remaining(ix.exact[key])
}

// fallbackCandidates returns the unclaimed records sharing externalID and
// merchantID only, in bucket order.
func (ix *matchIndex) fallbackCandidates(key refKey) []*models.TransactionRecord {
	return ix.remaining(ix.byRef[key])
}

func (ix *matchIndex) remaining(bucket []*models.TransactionRecord) []*models.TransactionRecord {
	var out []*models.TransactionRecord
	for _, rec := range bucket {
		if !ix.claimed[rec.ID] {
			out = append(out, rec)
		}
	}
	return out
}

// claim removes a record from further consideration this run.
func (ix *matchIndex) claim(id uuid.UUID) {
	ix.claimed[id] = true
}

// unclaimed returns the leftover merchant-side records in pool order,
// for the post-loop sweep.
func (ix *matchIndex) unclaimed() []*models.TransactionRecord {
	var out []*models.TransactionRecord
	for i := range ix.pool {
		if !ix.claimed[ix.pool[i].ID] {
			out = append(out, &ix.pool[i])
		}
	}
	return out
}
