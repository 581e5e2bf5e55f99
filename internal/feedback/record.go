// Package feedback holds the domain model of the feedback engine: the
// persisted record, its closed enum sets with stable wire strings, the
// topic-to-department routing table, and text sanitization.
package feedback

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment is the polarity classification of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// ParseSentiment maps a wire string to a Sentiment, defaulting to NEUTRAL
// for anything outside the enum. Reads from the store and from LLM replies
// both go through here.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// Source identifies which analysis path produced the stored classification.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// ParseSource defaults to fallback for unknown wire strings so a corrupted
// row is still eligible for reconciliation.
func ParseSource(s string) Source {
	if Source(s) == SourceAI {
		return SourceAI
	}
	return SourceFallback
}

// Provider is the provenance tag of a classification.
type Provider string

const (
	ProviderPrimary   Provider = "primary-llm"
	ProviderSecondary Provider = "secondary-llm"
	ProviderHeuristic Provider = "heuristic"
	ProviderMock      Provider = "mock"
	ProviderUnknown   Provider = "unknown"
)

// ParseProvider maps a wire string to a Provider, defaulting to unknown.
func ParseProvider(s string) Provider {
	switch Provider(s) {
	case ProviderPrimary, ProviderSecondary, ProviderHeuristic, ProviderMock:
		return Provider(s)
	default:
		return ProviderUnknown
	}
}

// Department is a routing destination derived from topics.
type Department string

const (
	DepartmentFinance     Department = "Customer Success - Finance"
	DepartmentEngineering Department = "Engineering - Core"
	DepartmentProduct     Department = "Product - Design"
	DepartmentInfoSec     Department = "InfoSec - Priority"
	DepartmentSupport     Department = "Customer Support - Triage"
	DepartmentUnassigned  Department = "Unassigned"
)

// Status is the workflow state of a ticket.
type Status string

const (
	StatusOpen     Status = "Open"
	StatusResolved Status = "Resolved"
)

// ParseStatus defaults to Open.
func ParseStatus(s string) Status {
	if Status(s) == StatusResolved {
		return StatusResolved
	}
	return StatusOpen
}

// Priority is the triage priority of a ticket.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ParsePriority defaults to Medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityHigh, PriorityCritical:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Classification is the output of either analysis path, before it is bound
// to a record.
type Classification struct {
	Sentiment  Sentiment `json:"sentiment"`
	Topics     []string  `json:"topics"`
	IsUrgent   bool      `json:"is_urgent"`
	Confidence float64   `json:"confidence_score"`
	Provider   Provider  `json:"ai_provider"`
}

// Record is the sole persisted entity: one analyzed feedback message with
// its routing and workflow state.
type Record struct {
	ID             uuid.UUID  `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	RawContent     string     `json:"raw_content"`
	ContentHash    string     `json:"content_hash"`
	Sentiment      Sentiment  `json:"sentiment"`
	Topics         []string   `json:"topics"`
	IsUrgent       bool       `json:"is_urgent"`
	Confidence     float64    `json:"confidence_score"`
	Source         Source     `json:"source"`
	Provider       Provider   `json:"ai_provider"`
	Department     Department `json:"department"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	NeedsReview    bool       `json:"needs_review"`
}

// NewRecord builds an OPEN, MEDIUM-priority record from a classification.
// Department is always derived from the classification's topics so the
// routing invariant holds at creation.
func NewRecord(raw, hash string, c Classification, source Source) *Record {
	return &Record{
		ID:          uuid.New(),
		CreatedAt:   time.Now().UTC(),
		RawContent:  raw,
		ContentHash: hash,
		Sentiment:   c.Sentiment,
		Topics:      c.Topics,
		IsUrgent:    c.IsUrgent,
		Confidence:  c.Confidence,
		Source:      source,
		Provider:    c.Provider,
		Department:  RouteDepartment(c.Topics),
		Status:      StatusOpen,
		Priority:    PriorityMedium,
	}
}
