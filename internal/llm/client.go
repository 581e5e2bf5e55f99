// Package llm calls the external classifier providers and validates their
// replies. The reply schema is adversarial by assumption: every field is
// coerced defensively, and only unparseable JSON counts as a failure.
package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	aegiserrors "aegis/internal/errors"
	"aegis/internal/feedback"
)

// systemPrompt fixes the output schema and the permitted enum values.
const systemPrompt = `You are a classification engine. Return VALID JSON ONLY. ` +
	`Schema: {"sentiment": "POSITIVE"|"NEGATIVE"|"NEUTRAL", ` +
	`"topics": ["Billing", "Technical", "UX", "Security", "General"], ` +
	`"is_urgent": boolean}`

// llmConfidence is reported for every validated provider reply.
const llmConfidence = 0.99

// Classifier is the AI path: one provider attempt per call, no retries.
type Classifier interface {
	Classify(ctx context.Context, text string) (feedback.Classification, error)
}

// rawReply is the wire shape before coercion. Topics and is_urgent stay raw
// because providers routinely return the wrong JSON types for them.
type rawReply struct {
	Sentiment string          `json:"sentiment"`
	Topics    json.RawMessage `json:"topics"`
	IsUrgent  json.RawMessage `json:"is_urgent"`
}

// ParseReply validates one provider reply. Malformed JSON is repaired before
// giving up; wrong-typed or out-of-enum fields are coerced to safe defaults
// and are NOT failures.
func ParseReply(provider feedback.Provider, content string) (feedback.Classification, error) {
	var raw rawReply
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return feedback.Classification{}, &aegiserrors.UpstreamBadFormatError{Provider: string(provider), Err: err}
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return feedback.Classification{}, &aegiserrors.UpstreamBadFormatError{Provider: string(provider), Err: err}
		}
	}

	return feedback.Classification{
		Sentiment:  feedback.ParseSentiment(strings.ToUpper(strings.TrimSpace(raw.Sentiment))),
		Topics:     coerceTopics(raw.Topics),
		IsUrgent:   coerceBool(raw.IsUrgent),
		Confidence: llmConfidence,
		Provider:   provider,
	}, nil
}

// coerceTopics accepts only a non-empty list of strings; anything else
// becomes ["General"]. Unknown tags are retained for the record; routing
// ignores them.
func coerceTopics(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{"General"}
	}
	var topics []string
	if err := json.Unmarshal(raw, &topics); err != nil || len(topics) == 0 {
		return []string{"General"}
	}
	out := topics[:0]
	for _, topic := range topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			out = append(out, topic)
		}
	}
	if len(out) == 0 {
		return []string{"General"}
	}
	return out
}

// coerceBool accepts a JSON bool, a "true"/"false" string, or a number;
// absence and garbage both mean false.
func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, parseErr := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
		return parseErr == nil && parsed
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return false
}
