package reconciliation

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MerchantTotals is one row of the per-merchant breakdown. TotalAmount sums
// the bank-side amount of matched pairs only.
type MerchantTotals struct {
	MerchantID  string `json:"merchant_id"`
	Matched     int    `json:"matched"`
	Unmatched   int    `json:"unmatched"`
	Mismatches  int    `json:"mismatches"`
	TotalAmount int64  `json:"total_amount"`
}

// merchantAccumulator keys the breakdown by merchant id, creating a zeroed
// entry on first touch.
type merchantAccumulator map[string]*MerchantTotals

func (m merchantAccumulator) entry(merchantID string) *MerchantTotals {
	t, ok := m[merchantID]
	if !ok {
		t = &MerchantTotals{MerchantID: merchantID}
		m[merchantID] = t
	}
	return t
}

// sorted returns the rows ordered by merchant id for a stable ledger.
func (m merchantAccumulator) sorted() []MerchantTotals {
	out := make([]MerchantTotals, 0, len(m))
	for _, t := range m {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantID < out[j].MerchantID })
	return out
}

func (m merchantAccumulator) marshal() json.RawMessage {
	raw, err := json.Marshal(m.sorted())
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

// RunError is one entry of the run ledger's error list.
type RunError struct {
	Message       string     `json:"message"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

func marshalErrors(errs []RunError) json.RawMessage {
	if len(errs) == 0 {
		return nil
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}
