// Package analyzer implements the deterministic heuristic path: VADER
// sentiment, keyword topic extraction, and urgency detection. No I/O, no
// failure modes; this is the classification the engine falls back to when
// the AI path is slow or down.
package analyzer

import (
	"strings"

	"github.com/jonreiter/govader"

	"aegis/internal/feedback"
)

const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
	// A strongly negative compound score escalates to urgent even without
	// a keyword hit.
	urgencyEscalation = -0.6

	heuristicConfidence = 0.5
)

// topicKeywords is ordered: emitted topics preserve this table's order, and
// the first emitted topic drives department routing.
var topicKeywords = []struct {
	topic string
	words []string
}{
	{"Billing", []string{"charge", "credit", "card", "refund", "bill", "invoice", "cost"}},
	{"Technical", []string{"bug", "crash", "error", "fail", "slow", "login", "app", "down", "500", "404"}},
	{"UX", []string{"ugly", "confusing", "hard", "color", "button", "nav", "interface"}},
	{"Security", []string{"password", "hacked", "breach", "suspicious", "auth", "phishing"}},
}

var urgentKeywords = []string{"lawsuit", "sue", "illegal", "gdpr", "emergency", "fraud", "police"}

// Analyzer computes heuristic classifications. Safe for concurrent use; the
// underlying lexicon is read-only after construction.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// New builds an Analyzer with the default VADER lexicon.
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Analyze classifies text deterministically. It never fails for any input.
func (a *Analyzer) Analyze(text string) feedback.Classification {
	compound := a.vader.PolarityScores(text).Compound

	sentiment := feedback.SentimentNeutral
	switch {
	case compound >= positiveThreshold:
		sentiment = feedback.SentimentPositive
	case compound <= negativeThreshold:
		sentiment = feedback.SentimentNegative
	}

	lower := strings.ToLower(text)

	var topics []string
	for _, entry := range topicKeywords {
		for _, word := range entry.words {
			if strings.Contains(lower, word) {
				topics = append(topics, entry.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = []string{"General"}
	}

	urgent := false
	for _, word := range urgentKeywords {
		if strings.Contains(lower, word) {
			urgent = true
			break
		}
	}
	if sentiment == feedback.SentimentNegative && compound < urgencyEscalation {
		urgent = true
	}

	return feedback.Classification{
		Sentiment:  sentiment,
		Topics:     topics,
		IsUrgent:   urgent,
		Confidence: heuristicConfidence,
		Provider:   feedback.ProviderHeuristic,
	}
}
