package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/feedback"
)

func urgentRecord() *feedback.Record {
	sanitized := feedback.Sanitize("This is fraud, I am calling the police")
	return feedback.NewRecord(sanitized, feedback.ContentHash(sanitized), feedback.Classification{
		Sentiment:  feedback.SentimentNegative,
		Topics:     []string{"Security"},
		IsUrgent:   true,
		Confidence: 0.99,
		Provider:   feedback.ProviderPrimary,
	}, feedback.SourceAI)
}

func TestUrgentFeedbackPostsWebhook(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := urgentRecord()
	New(srv.URL, nil).UrgentFeedback(context.Background(), rec)

	require.NotNil(t, received)
	assert.Contains(t, received["content"], "URGENT FEEDBACK")
	assert.Contains(t, received["content"], rec.ID.String())
}

func TestUrgentFeedbackSwallowsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Must not panic or propagate anything.
	New(srv.URL, nil).UrgentFeedback(context.Background(), urgentRecord())
}

func TestUrgentFeedbackWithoutWebhookLogsOnly(t *testing.T) {
	New("", nil).UrgentFeedback(context.Background(), urgentRecord())
}
