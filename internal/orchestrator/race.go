// Package orchestrator runs the AI classifier against the heuristic path
// under a hard deadline. The AI result wins when it arrives in time; every
// other outcome degrades to the heuristic without failing the request.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"aegis/internal/async"
	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
	"aegis/internal/llm"
	"aegis/internal/logging"
)

// DefaultMaxInflight caps outstanding LLM calls process-wide.
const DefaultMaxInflight = 50

// Heuristic is the deterministic fallback classifier.
type Heuristic interface {
	Analyze(text string) feedback.Classification
}

// Observer receives race-outcome events. Nil observers are allowed.
type Observer interface {
	RaceTimeout()
	LLMFailure()
}

// Result is a classification bound to the path that produced it and its
// resolved routing destination.
type Result struct {
	feedback.Classification
	Source     feedback.Source
	Department feedback.Department
}

// Orchestrator coordinates the race. Exactly one instance exists per
// process: the semaphore it holds is the process-wide concurrency gate.
type Orchestrator struct {
	classifier llm.Classifier
	heuristic  Heuristic
	gate       *semaphore.Weighted
	deadline   time.Duration
	logger     logging.Logger
	observer   Observer
}

// SetObserver attaches an outcome observer. Call before serving traffic.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}

// New builds an Orchestrator. maxInflight <= 0 selects the default gate
// capacity; deadline <= 0 selects 450ms.
func New(classifier llm.Classifier, heuristic Heuristic, deadline time.Duration, maxInflight int64, logger logging.Logger) *Orchestrator {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	if deadline <= 0 {
		deadline = 450 * time.Millisecond
	}
	return &Orchestrator{
		classifier: classifier,
		heuristic:  heuristic,
		gate:       semaphore.NewWeighted(maxInflight),
		deadline:   deadline,
		logger:     logging.OrNop(logger),
	}
}

// Classify races the AI path against the deadline and returns whichever
// result is authoritative. It never fails: the heuristic result is computed
// eagerly and stands in for every AI-side failure mode.
func (o *Orchestrator) Classify(ctx context.Context, text string) Result {
	fallback := o.heuristic.Analyze(text)

	raceCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	// Gate admission shares the race deadline: a saturated gate is a timeout.
	if err := o.gate.Acquire(raceCtx, 1); err != nil {
		o.logger.Warn("Concurrency gate blocked past deadline: %v", &aegiserrors.RaceTimeoutError{Deadline: o.deadline})
		o.noteTimeout()
		return o.finish(fallback, feedback.SourceFallback)
	}

	resultCh := make(chan feedback.Classification, 1)
	errCh := make(chan error, 1)
	async.Go(o.logger, "llm.classify", func() {
		defer o.gate.Release(1)
		result, err := o.classifier.Classify(raceCtx, text)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	})

	select {
	case result := <-resultCh:
		return o.finish(result, feedback.SourceAI)
	case err := <-errCh:
		if aegiserrors.IsUpstreamBadFormat(err) {
			o.logger.Error("AI reply unusable, using fallback: %v", err)
		} else {
			o.logger.Warn("AI path failed, using fallback: %v", err)
		}
		if o.observer != nil {
			o.observer.LLMFailure()
		}
		return o.finish(fallback, feedback.SourceFallback)
	case <-raceCtx.Done():
		// cancel propagates into the in-flight HTTP call, so the connection
		// and the gate token are released without being awaited here.
		o.logger.Warn("%v", &aegiserrors.RaceTimeoutError{Deadline: o.deadline})
		o.noteTimeout()
		return o.finish(fallback, feedback.SourceFallback)
	}
}

func (o *Orchestrator) noteTimeout() {
	if o.observer != nil {
		o.observer.RaceTimeout()
	}
}

func (o *Orchestrator) finish(c feedback.Classification, source feedback.Source) Result {
	return Result{
		Classification: c,
		Source:         source,
		Department:     feedback.RouteDepartment(c.Topics),
	}
}
