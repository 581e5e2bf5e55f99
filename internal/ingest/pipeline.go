// Package ingest is the write path of the engine: validate, sanitize, dedup,
// classify, persist. It is the only package that creates feedback records.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aegis/internal/async"
	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
	"aegis/internal/logging"
	"aegis/internal/metrics"
	"aegis/internal/orchestrator"
	"aegis/internal/store"
)

const (
	minContentRunes = 3
	maxContentRunes = 5000
)

// Notifier delivers urgent-feedback alerts.
type Notifier interface {
	UrgentFeedback(ctx context.Context, rec *feedback.Record)
}

// Reconciler accepts records for later re-classification.
type Reconciler interface {
	Enqueue(id uuid.UUID)
}

// Result is the outcome of one ingest call. Duplicate marks that Record is a
// pre-existing row returned instead of a new one.
type Result struct {
	Record    *feedback.Record
	Duplicate bool
}

// Pipeline wires the ingest stages together.
type Pipeline struct {
	orch       *orchestrator.Orchestrator
	store      *store.Store
	notifier   Notifier
	reconciler Reconciler
	metrics    *metrics.Metrics
	logger     logging.Logger
}

// New builds a Pipeline. notifier, reconciler, and m may be nil; the
// corresponding side effects are then skipped.
func New(orch *orchestrator.Orchestrator, st *store.Store, notifier Notifier, reconciler Reconciler, m *metrics.Metrics, logger logging.Logger) *Pipeline {
	return &Pipeline{
		orch:       orch,
		store:      st,
		notifier:   notifier,
		reconciler: reconciler,
		metrics:    m,
		logger:     logging.OrNop(logger),
	}
}

// Ingest processes one raw feedback message end to end. The original text is
// what gets persisted; sanitization only feeds the classifiers and the dedup
// hash, so re-submitting equivalent text returns the existing record with
// Duplicate set and the classification race never runs for duplicates.
func (p *Pipeline) Ingest(ctx context.Context, raw string) (Result, error) {
	start := time.Now()

	// Length bounds apply to the input as submitted, before sanitization.
	if n := len([]rune(raw)); n < minContentRunes || n > maxContentRunes {
		return Result{}, &aegiserrors.ValidationError{
			Field:  "raw_content",
			Reason: "must be between 3 and 5000 characters",
		}
	}
	sanitized := feedback.Sanitize(raw)
	if len([]rune(sanitized)) < minContentRunes {
		return Result{}, &aegiserrors.ValidationError{
			Field:  "raw_content",
			Reason: "empty after sanitization",
		}
	}
	hash := feedback.ContentHash(sanitized)

	if existing, err := p.store.GetByHash(ctx, hash); err != nil {
		return Result{}, err
	} else if existing != nil {
		p.noteDuplicate()
		return Result{Record: existing, Duplicate: true}, nil
	}

	result := p.orch.Classify(ctx, sanitized)
	rec := feedback.NewRecord(raw, hash, result.Classification, result.Source)

	if err := p.store.Insert(ctx, rec); err != nil {
		if aegiserrors.IsUniqueConflict(err) {
			// Lost the insert race to a concurrent identical submission; the
			// committed row is authoritative.
			winner, rerr := p.store.GetByHash(ctx, hash)
			if rerr == nil && winner != nil {
				p.noteDuplicate()
				return Result{Record: winner, Duplicate: true}, nil
			}
			return Result{}, err
		}
		return Result{}, err
	}

	p.afterInsert(rec)
	p.observe(rec, start)
	return Result{Record: rec}, nil
}

// afterInsert fires the post-commit side effects: urgent alerting and, for
// fallback-classified records, a reconciliation nudge. Both are best-effort.
func (p *Pipeline) afterInsert(rec *feedback.Record) {
	if rec.IsUrgent && p.notifier != nil {
		alertRec := *rec
		async.Go(p.logger, "alert.urgent", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			p.notifier.UrgentFeedback(ctx, &alertRec)
		})
		if p.metrics != nil {
			p.metrics.AlertsTotal.Inc()
		}
	}
	if rec.Source == feedback.SourceFallback && p.reconciler != nil {
		p.reconciler.Enqueue(rec.ID)
	}
}

func (p *Pipeline) noteDuplicate() {
	if p.metrics != nil {
		p.metrics.DuplicatesTotal.Inc()
	}
}

func (p *Pipeline) observe(rec *feedback.Record, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.IngestTotal.WithLabelValues(string(rec.Source)).Inc()
	p.metrics.IngestDuration.Observe(time.Since(start).Seconds())
}
