package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aegis/internal/async"
	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
	"aegis/internal/ingest"
	"aegis/internal/logging"
	"aegis/internal/store"
)

// maxCSVBytes caps batch uploads held in memory.
const maxCSVBytes = 8 << 20

// Reconciler is the slice of the reconciliation scheduler the admin API uses.
type Reconciler interface {
	Enqueue(id uuid.UUID)
}

// Handlers holds the HTTP layer's dependencies.
type Handlers struct {
	pipeline   *ingest.Pipeline
	store      *store.Store
	reconciler Reconciler
	logger     logging.Logger
}

// NewHandlers builds the handler set. reconciler may be nil, which disables
// POST /admin/reconcile.
func NewHandlers(pipeline *ingest.Pipeline, st *store.Store, reconciler Reconciler, logger logging.Logger) *Handlers {
	return &Handlers{
		pipeline:   pipeline,
		store:      st,
		reconciler: reconciler,
		logger:     logging.OrNop(logger),
	}
}

type createFeedbackRequest struct {
	RawContent string `json:"raw_content"`
	// Text is an accepted alias for raw_content.
	Text string `json:"text"`
}

func (r createFeedbackRequest) content() string {
	if r.RawContent != "" {
		return r.RawContent
	}
	return r.Text
}

// CreateFeedback ingests one feedback message. Every accepted submission
// answers 200; a resubmission of known text returns the existing record with
// an X-Status: Duplicate header.
func (h *Handlers) CreateFeedback(c *gin.Context) {
	var req createFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "body must be JSON with a raw_content field"})
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), req.content())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result.Duplicate {
		c.Header("X-Status", "Duplicate")
	}
	c.JSON(http.StatusOK, result.Record)
}

// ListFeedback pages through stored records, newest first.
func (h *Handlers) ListFeedback(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.store.List(c.Request.Context(), skip, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*feedback.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// GetFeedback returns one record by id.
func (h *Handlers) GetFeedback(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type resolveRequest struct {
	ResolutionNote string `json:"resolution_note"`
}

// ResolveFeedback marks a record RESOLVED with an optional note. Resolving an
// already-resolved record is a no-op that answers 200.
func (h *Handlers) ResolveFeedback(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid body"})
		return
	}

	rec, err := h.store.Mutate(c.Request.Context(), id, func(live *feedback.Record) bool {
		if live.Status == feedback.StatusResolved {
			return false
		}
		live.Status = feedback.StatusResolved
		live.ResolutionNote = strings.TrimSpace(req.ResolutionNote)
		live.NeedsReview = false
		return true
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// BatchCSV accepts a CSV upload and processes it in the background, row by
// row through the same pipeline as single submissions.
func (h *Handlers) BatchCSV(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxCSVBytes+1))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not read upload"})
		return
	}
	if len(data) > maxCSVBytes {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file too large"})
		return
	}

	filename := header.Filename
	async.Go(h.logger, "ingest.batch_csv", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		outcome, werr := h.pipeline.IngestCSV(ctx, bytes.NewReader(data))
		if werr != nil {
			h.logger.Error("Batch %s aborted: %v (partial: %+v)", filename, werr, outcome)
			return
		}
		h.logger.Info("Batch %s done: processed=%d duplicates=%d rejected=%d failed=%d",
			filename, outcome.Processed, outcome.Duplicates, outcome.Rejected, outcome.Failed)
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "filename": filename})
}

// Stats reports population counters.
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.store.GetStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type reconcileRequest struct {
	ID string `json:"id"`
}

// TriggerReconcile nudges reconciliation outside the sweep cadence: with an
// id it enqueues that record, without one it enqueues every current fallback
// record.
func (h *Handlers) TriggerReconcile(c *gin.Context) {
	if h.reconciler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation disabled"})
		return
	}

	var req reconcileRequest
	_ = c.ShouldBindJSON(&req)

	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid id"})
			return
		}
		h.reconciler.Enqueue(id)
		c.JSON(http.StatusAccepted, gin.H{"enqueued": 1})
		return
	}

	records, err := h.store.ListBySource(c.Request.Context(), feedback.SourceFallback, 1000)
	if err != nil {
		h.writeError(c, err)
		return
	}
	for _, rec := range records {
		h.reconciler.Enqueue(rec.ID)
	}
	c.JSON(http.StatusAccepted, gin.H{"enqueued": len(records)})
}

// ListReviews returns every record awaiting human review.
func (h *Handlers) ListReviews(c *gin.Context) {
	records, err := h.store.ListNeedsReview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*feedback.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// ReviewsCSV exports the review queue as CSV for triage spreadsheets.
func (h *Handlers) ReviewsCSV(c *gin.Context) {
	records, err := h.store.ListNeedsReview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="reviews.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "created_at", "sentiment", "is_urgent", "department", "source", "raw_content"})
	for _, rec := range records {
		_ = w.Write([]string{
			rec.ID.String(),
			rec.CreatedAt.Format(time.RFC3339),
			string(rec.Sentiment),
			strconv.FormatBool(rec.IsUrgent),
			string(rec.Department),
			string(rec.Source),
			rec.RawContent,
		})
	}
	w.Flush()
}

// Health answers liveness checks.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid id"})
		return uuid.UUID{}, false
	}
	return id, true
}

// writeError maps pipeline and store errors to status codes. Unknown errors
// answer 500 without leaking internals.
func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case aegiserrors.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case aegiserrors.IsStoreUnavailable(err), aegiserrors.IsUniqueConflict(err):
		h.logger.Error("Store failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable"})
	default:
		h.logger.Error("Unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
