// Package reconcile upgrades fallback-classified records with unhurried LLM
// results and flags disagreements for human review.
package reconcile

import (
	"context"

	"github.com/google/uuid"

	"aegis/internal/feedback"
	"aegis/internal/llm"
	"aegis/internal/logging"
	"aegis/internal/metrics"
	"aegis/internal/store"
)

// Worker reconciles one record at a time. Unlike the ingest race, its LLM
// calls carry no deadline beyond the client's own timeout and bypass the
// concurrency gate.
type Worker struct {
	store      *store.Store
	classifier llm.Classifier
	metrics    *metrics.Metrics
	logger     logging.Logger
}

// NewWorker builds a Worker. m may be nil.
func NewWorker(st *store.Store, classifier llm.Classifier, m *metrics.Metrics, logger logging.Logger) *Worker {
	return &Worker{
		store:      st,
		classifier: classifier,
		metrics:    m,
		logger:     logging.OrNop(logger),
	}
}

// Reconcile re-classifies one record. It is idempotent: records already
// upgraded, resolved, or deleted are skipped without side effects. The
// snapshot it reads is re-validated inside the write gate before committing,
// so a concurrent resolution always wins.
func (w *Worker) Reconcile(ctx context.Context, id uuid.UUID) {
	snapshot, err := w.store.GetByID(ctx, id)
	if err != nil {
		w.logger.Warn("Reconcile read failed for %s: %v", id, err)
		w.note(metrics.OutcomeFailed)
		return
	}
	if snapshot == nil || snapshot.Source == feedback.SourceAI || snapshot.Status == feedback.StatusResolved {
		w.note(metrics.OutcomeSkipped)
		return
	}

	// Classify the sanitized form, same as ingest; raw_content is stored
	// unmodified.
	text := feedback.Sanitize(snapshot.RawContent)
	result, err := w.classifier.Classify(ctx, text)
	if err != nil {
		w.logger.Warn("Reconcile classify failed for %s: %v", id, err)
		w.note(metrics.OutcomeFailed)
		return
	}

	var missedUrgency, sentimentMismatch, flagged, committed bool
	rec, err := w.store.Mutate(ctx, id, func(live *feedback.Record) bool {
		// Re-check under the gate: the row may have changed since the snapshot.
		if live.Source == feedback.SourceAI || live.Status == feedback.StatusResolved {
			return false
		}
		// Drift is judged against the live row, not the snapshot.
		missedUrgency = result.IsUrgent && !live.IsUrgent
		sentimentMismatch = result.Sentiment != live.Sentiment
		live.Sentiment = result.Sentiment
		live.Topics = result.Topics
		live.IsUrgent = result.IsUrgent
		live.Confidence = result.Confidence
		live.Provider = result.Provider
		live.Source = feedback.SourceAI
		live.Department = feedback.RouteDepartment(result.Topics)
		if missedUrgency || (sentimentMismatch && result.IsUrgent) {
			live.NeedsReview = true
			flagged = true
		}
		committed = true
		return true
	})
	if err != nil {
		w.logger.Warn("Reconcile write failed for %s: %v", id, err)
		w.note(metrics.OutcomeFailed)
		return
	}
	if rec == nil || !committed {
		w.note(metrics.OutcomeSkipped)
		return
	}

	if flagged {
		w.logger.Info("Reconciled %s with drift (missed_urgency=%t sentiment_mismatch=%t), flagged for review",
			id, missedUrgency, sentimentMismatch)
		w.note(metrics.OutcomeReview)
		return
	}
	w.logger.Info("Reconciled %s: %s via %s", id, rec.Sentiment, rec.Provider)
	w.note(metrics.OutcomeUpgraded)
}

func (w *Worker) note(outcome string) {
	if w.metrics != nil {
		w.metrics.ReconcileTotal.WithLabelValues(outcome).Inc()
	}
}
