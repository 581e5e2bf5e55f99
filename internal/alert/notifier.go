// Package alert delivers urgent-item notifications over a webhook. Delivery
// is at-most-once: failures are logged and swallowed, never propagated into
// ingestion.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
	"aegis/internal/logging"
)

// Notifier posts urgent-feedback alerts to a configured webhook. With no
// URL configured it degrades to a critical log line carrying the same payload.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     logging.Logger
}

// New builds a Notifier. An empty webhookURL selects log-only delivery.
func New(webhookURL string, logger logging.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.OrNop(logger),
	}
}

// UrgentFeedback formats and delivers the alert for one urgent record.
// Errors never escape; callers fire-and-forget.
func (n *Notifier) UrgentFeedback(ctx context.Context, rec *feedback.Record) {
	message := fmt.Sprintf("URGENT FEEDBACK %s | dept=%s sentiment=%s | %s",
		rec.ID, rec.Department, rec.Sentiment, rec.RawContent)

	if n.webhookURL == "" {
		n.logger.Error("CRITICAL ALERT (no webhook configured): %s", message)
		return
	}

	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		n.logger.Error("%v", &aegiserrors.AlertFailureError{Err: err})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("%v", &aegiserrors.AlertFailureError{Err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("%v", &aegiserrors.AlertFailureError{Err: err})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("%v", &aegiserrors.AlertFailureError{
			Err: fmt.Errorf("webhook status %d", resp.StatusCode),
		})
		return
	}
	n.logger.Info("Alert delivered for %s", rec.ID)
}
