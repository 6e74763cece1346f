package reconciliation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-backoffice/internal/models"
)

func TestMatchIndex_BucketsSortedByOccurrence(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	pool := []models.TransactionRecord{
		merchantRecord("X", "M1", 100, t0.Add(3*time.Hour)),
		merchantRecord("X", "M1", 100, t0.Add(1*time.Hour)),
		merchantRecord("X", "M1", 100, t0.Add(2*time.Hour)),
	}
	ix := newMatchIndex(pool)

	cands := ix.exactCandidates(matchKey{externalID: "X", merchantID: "M1", amount: 100})
	require.Len(t, cands, 3)
	assert.True(t, cands[0].OccurredAt.Before(cands[1].OccurredAt))
	assert.True(t, cands[1].OccurredAt.Before(cands[2].OccurredAt))
}

func TestMatchIndex_ClaimRemovesFromAllLookups(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	pool := []models.TransactionRecord{
		merchantRecord("X", "M1", 100, t0),
		merchantRecord("X", "M1", 200, t0),
	}
	ix := newMatchIndex(pool)

	first := ix.exactCandidates(matchKey{externalID: "X", merchantID: "M1", amount: 100})
	require.Len(t, first, 1)
	ix.claim(first[0].ID)

	assert.Empty(t, ix.exactCandidates(matchKey{externalID: "X", merchantID: "M1", amount: 100}))
	// The fallback bucket shares the claimed set.
	fallback := ix.fallbackCandidates(refKey{externalID: "X", merchantID: "M1"})
	require.Len(t, fallback, 1)
	assert.Equal(t, int64(200), fallback[0].Amount)

	unclaimed := ix.unclaimed()
	require.Len(t, unclaimed, 1)
	assert.Equal(t, int64(200), unclaimed[0].Amount)
}

func TestMatchIndex_KeySeparatesMerchants(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	pool := []models.TransactionRecord{
		merchantRecord("X", "M1", 100, t0),
		merchantRecord("X", "M2", 100, t0),
	}
	ix := newMatchIndex(pool)

	assert.Len(t, ix.exactCandidates(matchKey{externalID: "X", merchantID: "M1", amount: 100}), 1)
	assert.Len(t, ix.exactCandidates(matchKey{externalID: "X", merchantID: "M2", amount: 100}), 1)
	assert.Empty(t, ix.exactCandidates(matchKey{externalID: "X", merchantID: "M3", amount: 100}))
}
