package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/feedback"
)

type stubHeuristic struct {
	result feedback.Classification
}

func (s stubHeuristic) Analyze(string) feedback.Classification { return s.result }

func TestMockClassifierRelabelsHeuristicResult(t *testing.T) {
	mock := NewMock(stubHeuristic{result: feedback.Classification{
		Sentiment:  feedback.SentimentNegative,
		Topics:     []string{"Technical"},
		IsUrgent:   true,
		Confidence: 0.5,
		Provider:   feedback.ProviderHeuristic,
	}}, 0)

	got, err := mock.Classify(context.Background(), "the app crashed")
	require.NoError(t, err)
	assert.Equal(t, feedback.ProviderMock, got.Provider)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	assert.Equal(t, feedback.SentimentNegative, got.Sentiment)
	assert.Equal(t, []string{"Technical"}, got.Topics)
	assert.True(t, got.IsUrgent)
}

func TestMockClassifierHonorsCancellation(t *testing.T) {
	mock := NewMock(stubHeuristic{}, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := mock.Classify(ctx, "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockClassifierWaitsOutLatency(t *testing.T) {
	mock := NewMock(stubHeuristic{}, 30*time.Millisecond)

	start := time.Now()
	_, err := mock.Classify(context.Background(), "anything")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
