package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsDispute(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := DisputeAlert{
		RunID:         uuid.New(),
		ExternalID:    "T1",
		MerchantID:    "M1",
		DisputeAmount: 50,
		Severity:      SeverityHigh,
	}
	require.NoError(t, n.EmitDispute(alert))

	assert.Equal(t, "dispute", got["type"])
	payload, ok := got["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "T1", payload["external_id"])
	assert.Equal(t, "HIGH", payload["severity"])
}

func TestWebhookNotifierReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.EmitCompletion(CompletionAlert{RunID: uuid.New(), Status: "COMPLETED"})
	assert.Error(t, err)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.EmitDispute(DisputeAlert{RunID: uuid.New()}))
	assert.NoError(t, n.EmitCompletion(CompletionAlert{RunID: uuid.New()}))
}
