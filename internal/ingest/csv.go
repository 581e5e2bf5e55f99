package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	aegiserrors "aegis/internal/errors"
)

// BatchOutcome summarizes one CSV batch run.
type BatchOutcome struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
	Failed     int `json:"failed"`
}

// IngestCSV streams a CSV of feedback messages through the pipeline one row
// at a time. The text column is located by header name ("text" or
// "raw_content"); a headerless file is read as single-column text. Row-level
// validation failures are counted, not fatal; store failures abort the batch.
func (p *Pipeline) IngestCSV(ctx context.Context, r io.Reader) (BatchOutcome, error) {
	var outcome BatchOutcome

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	textCol := 0
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return outcome, nil
		}
		if err != nil {
			return outcome, &aegiserrors.ValidationError{Field: "file", Reason: "malformed CSV: " + err.Error()}
		}

		if first {
			first = false
			if col, ok := findTextColumn(row); ok {
				textCol = col
				continue
			}
		}
		if textCol >= len(row) {
			outcome.Rejected++
			continue
		}

		result, err := p.Ingest(ctx, row[textCol])
		switch {
		case aegiserrors.IsValidation(err):
			outcome.Rejected++
		case err != nil:
			p.logger.Error("Batch row failed: %v", err)
			outcome.Failed++
			if aegiserrors.IsStoreUnavailable(err) {
				return outcome, err
			}
		case result.Duplicate:
			outcome.Duplicates++
		default:
			outcome.Processed++
		}
	}
}

func findTextColumn(header []string) (int, bool) {
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text", "raw_content", "content", "feedback":
			return i, true
		}
	}
	return 0, false
}
