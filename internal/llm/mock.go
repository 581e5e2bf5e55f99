package llm

import (
	"context"
	"time"

	"aegis/internal/feedback"
)

// Heuristic is the deterministic analyzer the mock path leans on.
type Heuristic interface {
	Analyze(text string) feedback.Classification
}

// mockConfidence distinguishes mock replies from both the heuristic (0.5)
// and real providers (0.99).
const mockConfidence = 0.95

// MockClassifier simulates a provider: it sleeps a configurable latency and
// returns the heuristic result tagged as mock. Used when no keys are
// configured and throughout the tests.
type MockClassifier struct {
	heuristic Heuristic
	latency   time.Duration
}

// NewMock builds a MockClassifier with the given simulated latency.
func NewMock(heuristic Heuristic, latency time.Duration) *MockClassifier {
	return &MockClassifier{heuristic: heuristic, latency: latency}
}

// Classify waits out the simulated latency (honoring cancellation) and
// returns the heuristic classification relabeled as a mock provider reply.
func (m *MockClassifier) Classify(ctx context.Context, text string) (feedback.Classification, error) {
	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return feedback.Classification{}, ctx.Err()
		case <-timer.C:
		}
	}

	result := m.heuristic.Analyze(text)
	result.Provider = feedback.ProviderMock
	result.Confidence = mockConfidence
	return result, nil
}
