package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestCSVWithHeader(t *testing.T) {
	p, st, _, _ := newTestPipeline(t)

	csvData := "id,text\n" +
		"1,The app crashed again\n" +
		"2,Billing looks wrong this month\n" +
		"3,The app crashed again\n" + // duplicate of row 1
		"4,no\n" // too short after sanitization

	outcome, err := p.IngestCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
	assert.Equal(t, 1, outcome.Duplicates)
	assert.Equal(t, 1, outcome.Rejected)
	assert.Equal(t, 0, outcome.Failed)

	stats, err := st.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
}

func TestIngestCSVHeaderless(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	csvData := "The checkout flow is confusing\nPayment failed with an error\n"
	outcome, err := p.IngestCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
}

func TestIngestCSVAlternateColumnName(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	csvData := "raw_content,score\nLogin keeps failing,1\n"
	outcome, err := p.IngestCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
}

func TestIngestCSVEmptyInput(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	outcome, err := p.IngestCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, BatchOutcome{}, outcome)
}

func TestIngestCSVCancelledContextStops(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IngestCSV(ctx, strings.NewReader("text\nsome feedback\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
