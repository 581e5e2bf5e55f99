package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
)

const feedbackColumns = `id, created_at, raw_content, content_hash, sentiment, topics,
	is_urgent, confidence_score, source, ai_provider, department, status, priority,
	resolution_note, needs_review`

// Insert commits a new record under the write gate. A duplicate content hash
// surfaces as a UniqueConflictError so the caller can re-read the winning row.
func (s *Store) Insert(ctx context.Context, rec *feedback.Record) error {
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return &aegiserrors.StoreUnavailableError{Op: "insert", Err: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.RawContent,
		rec.ContentHash, string(rec.Sentiment), string(topics), rec.IsUrgent,
		rec.Confidence, string(rec.Source), string(rec.Provider), string(rec.Department),
		string(rec.Status), string(rec.Priority), rec.ResolutionNote, rec.NeedsReview)
	if err != nil {
		if isUniqueViolation(err) {
			return &aegiserrors.UniqueConflictError{Hash: rec.ContentHash}
		}
		return &aegiserrors.StoreUnavailableError{Op: "insert", Err: err}
	}

	s.hashes.Add(rec.ContentHash, rec.ID)
	return nil
}

// GetByHash returns the record holding a content hash, or nil when absent.
// Recently seen hashes resolve through the primary key via the LRU cache.
func (s *Store) GetByHash(ctx context.Context, hash string) (*feedback.Record, error) {
	if id, ok := s.hashes.Get(hash); ok {
		rec, err := s.GetByID(ctx, id)
		if err != nil || rec != nil {
			return rec, err
		}
		// Stale cache entry; fall through to the index.
		s.hashes.Remove(hash)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE content_hash = ?`, hash)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.hashes.Add(rec.ContentHash, rec.ID)
	}
	return rec, nil
}

// GetByID returns a record by primary key, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*feedback.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id.String())
	return scanRecord(row)
}

// List returns records newest first with offset pagination.
func (s *Store) List(ctx context.Context, skip, limit int) ([]*feedback.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedbackColumns+` FROM feedback
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "list", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListBySource returns up to limit records with the given source, oldest
// first. The reconciliation sweep drains fallback records in arrival order.
func (s *Store) ListBySource(ctx context.Context, source feedback.Source, limit int) ([]*feedback.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedbackColumns+` FROM feedback
		WHERE source = ? ORDER BY created_at ASC LIMIT ?`, string(source), limit)
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "list-by-source", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListNeedsReview returns every record flagged for human review.
func (s *Store) ListNeedsReview(ctx context.Context) ([]*feedback.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedbackColumns+` FROM feedback
		WHERE needs_review = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "list-reviews", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats summarizes the stored population.
type Stats struct {
	Total    int64 `json:"total"`
	Urgent   int64 `json:"urgent"`
	Fallback int64 `json:"fallback"`
}

// GetStats counts total, urgent, and fallback-labeled records.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN is_urgent = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN source = ? THEN 1 ELSE 0 END), 0)
		FROM feedback`, string(feedback.SourceFallback))
	if err := row.Scan(&stats.Total, &stats.Urgent, &stats.Fallback); err != nil {
		return Stats{}, &aegiserrors.StoreUnavailableError{Op: "stats", Err: err}
	}
	return stats, nil
}

// Mutate runs a read-modify-write cycle on one record under the write gate.
// fn sees the live row and returns true to commit its changes; returning
// false aborts without writing. A nil record result means the id is unknown.
// ContentHash, RawContent, ID, and CreatedAt are immutable and never written
// back.
func (s *Store) Mutate(ctx context.Context, id uuid.UUID, fn func(*feedback.Record) bool) (*feedback.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.GetByID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	if !fn(rec) {
		return rec, nil
	}

	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "update", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE feedback SET sentiment = ?, topics = ?,
		is_urgent = ?, confidence_score = ?, source = ?, ai_provider = ?,
		department = ?, status = ?, priority = ?, resolution_note = ?, needs_review = ?
		WHERE id = ?`,
		string(rec.Sentiment), string(topics), rec.IsUrgent, rec.Confidence,
		string(rec.Source), string(rec.Provider), string(rec.Department),
		string(rec.Status), string(rec.Priority), rec.ResolutionNote, rec.NeedsReview,
		id.String())
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "update", Err: err}
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*feedback.Record, error) {
	var (
		rec        feedback.Record
		idStr      string
		createdAt  string
		sentiment  string
		topicsJSON string
		source     string
		provider   string
		department string
		status     string
		priority   string
		note       sql.NullString
	)
	err := row.Scan(&idStr, &createdAt, &rec.RawContent, &rec.ContentHash, &sentiment,
		&topicsJSON, &rec.IsUrgent, &rec.Confidence, &source, &provider, &department,
		&status, &priority, &note, &rec.NeedsReview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "read", Err: err}
	}

	rec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "read", Err: err}
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "read", Err: err}
	}
	if err := json.Unmarshal([]byte(topicsJSON), &rec.Topics); err != nil || len(rec.Topics) == 0 {
		rec.Topics = []string{"General"}
	}
	rec.Sentiment = feedback.ParseSentiment(sentiment)
	rec.Source = feedback.ParseSource(source)
	rec.Provider = feedback.ParseProvider(provider)
	rec.Department = feedback.Department(department)
	rec.Status = feedback.ParseStatus(status)
	rec.Priority = feedback.ParsePriority(priority)
	rec.ResolutionNote = note.String
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*feedback.Record, error) {
	var records []*feedback.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &aegiserrors.StoreUnavailableError{Op: "read", Err: err}
	}
	return records, nil
}
