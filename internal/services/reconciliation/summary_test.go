package reconciliation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantAccumulator(t *testing.T) {
	acc := make(merchantAccumulator)

	acc.entry("M2").Matched++
	acc.entry("M1").Mismatches++
	acc.entry("M2").TotalAmount += 500

	rows := acc.sorted()
	require.Len(t, rows, 2)
	assert.Equal(t, "M1", rows[0].MerchantID)
	assert.Equal(t, 1, rows[0].Mismatches)
	assert.Equal(t, "M2", rows[1].MerchantID)
	assert.Equal(t, 1, rows[1].Matched)
	assert.Equal(t, int64(500), rows[1].TotalAmount)
}

func TestMerchantAccumulatorMarshalEmpty(t *testing.T) {
	acc := make(merchantAccumulator)
	var rows []MerchantTotals
	require.NoError(t, json.Unmarshal(acc.marshal(), &rows))
	assert.Empty(t, rows)
}

func TestMarshalErrorsNilWhenEmpty(t *testing.T) {
	assert.Nil(t, marshalErrors(nil))
}
