package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Alert severities.
const (
	SeverityHigh = "HIGH"
	SeverityInfo = "INFO"
)

// DisputeAlert is emitted when a bank/merchant pair disagrees on amount
// beyond the configured tolerance. It carries enough payload to be rendered
// without querying the engine back.
type DisputeAlert struct {
	RunID                 uuid.UUID `json:"run_id"`
	BankTransactionID     uuid.UUID `json:"bank_transaction_id"`
	MerchantTransactionID uuid.UUID `json:"merchant_transaction_id"`
	ExternalID            string    `json:"external_id"`
	MerchantID            string    `json:"merchant_id"`
	BankAmount            int64     `json:"bank_amount"`
	MerchantAmount        int64     `json:"merchant_amount"`
	DisputeAmount         int64     `json:"dispute_amount"`
	Reason                string    `json:"reason"`
	Severity              string    `json:"severity"`
	OccurredAt            time.Time `json:"occurred_at"`
}

// CompletionAlert is emitted once per run after the finalizer commits
// the run ledger.
type CompletionAlert struct {
	RunID             uuid.UUID `json:"run_id"`
	Status            string    `json:"status"`
	TotalBank         int       `json:"total_bank"`
	TotalMerchant     int       `json:"total_merchant"`
	Matched           int       `json:"matched"`
	UnmatchedBank     int       `json:"unmatched_bank"`
	UnmatchedMerchant int       `json:"unmatched_merchant"`
	AmountMismatch    int       `json:"amount_mismatch"`
	DurationMs        int64     `json:"duration_ms"`
	CompletedAt       time.Time `json:"completed_at"`
}

// Notifier receives dispute and completion events for downstream alerting.
// Both methods are fire-and-forget: implementations must not block the run
// and callers swallow any error after logging it.
type Notifier interface {
	EmitDispute(alert DisputeAlert) error
	EmitCompletion(alert CompletionAlert) error
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) EmitDispute(alert DisputeAlert) error {
	n.logger.Warn("dispute detected",
		"run_id", alert.RunID,
		"external_id", alert.ExternalID,
		"merchant_id", alert.MerchantID,
		"bank_amount", alert.BankAmount,
		"merchant_amount", alert.MerchantAmount,
		"dispute_amount", alert.DisputeAmount,
		"severity", alert.Severity,
	)
	return nil
}

func (n *LogNotifier) EmitCompletion(alert CompletionAlert) error {
	n.logger.Info("reconciliation run completed",
		"run_id", alert.RunID,
		"status", alert.Status,
		"matched", alert.Matched,
		"unmatched_bank", alert.UnmatchedBank,
		"unmatched_merchant", alert.UnmatchedMerchant,
		"amount_mismatch", alert.AmountMismatch,
		"duration_ms", alert.DurationMs,
	)
	return nil
}

// WebhookNotifier POSTs alerts as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) EmitDispute(alert DisputeAlert) error {
	return n.post("dispute", alert)
}

func (n *WebhookNotifier) EmitCompletion(alert CompletionAlert) error {
	return n.post("completion", alert)
}

func (n *WebhookNotifier) post(kind string, payload any) error {
	body, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		return fmt.Errorf("encode %s alert: %w", kind, err)
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s alert: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s alert: unexpected status %d", kind, resp.StatusCode)
	}
	return nil
}
