package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"aegis/internal/feedback"
	"aegis/internal/store"
)

func TestSchedulerSweepsFallbackRecords(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	rec := insertFallback(t, st, "picked up by the sweep", heuristicResult())

	classifier := &scriptedClassifier{result: aiResult()}
	worker := NewWorker(st, classifier, nil, nil)
	scheduler := NewScheduler(worker, st, 50*time.Millisecond, 10, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	defer func() {
		cancel()
		scheduler.Stop()
		<-scheduler.Done()
	}()

	assert.Eventually(t, func() bool {
		got, gerr := st.GetByID(context.Background(), rec.ID)
		return gerr == nil && got != nil && got.Source == feedback.SourceAI
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSchedulerEnqueueReconcilesOutOfBand(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	rec := insertFallback(t, st, "nudged immediately", heuristicResult())

	worker := NewWorker(st, &scriptedClassifier{result: aiResult()}, nil, nil)
	// A long interval keeps the periodic sweep out of the picture.
	scheduler := NewScheduler(worker, st, time.Hour, 10, 0, nil)

	scheduler.Enqueue(rec.ID)

	assert.Eventually(t, func() bool {
		got, gerr := st.GetByID(context.Background(), rec.ID)
		return gerr == nil && got != nil && got.Source == feedback.SourceAI
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSchedulerStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)

	worker := NewWorker(st, &scriptedClassifier{result: aiResult()}, nil, nil)
	scheduler := NewScheduler(worker, st, 20*time.Millisecond, 10, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-scheduler.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.NoError(t, st.Close())
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	worker := NewWorker(st, &scriptedClassifier{result: aiResult()}, nil, nil)
	scheduler := NewScheduler(worker, st, time.Hour, 10, 0, nil)
	require.NoError(t, scheduler.Start(context.Background()))

	scheduler.Stop()
	scheduler.Stop()
	<-scheduler.Done()
}
