package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/pkg/ai"
)

const (
	// ConfidenceLocal is reported when no external classifier is configured
	ConfidenceLocal = 0.6
	// ConfidenceDegraded is reported when the external classifier was tried and failed
	ConfidenceDegraded = 0.55
	// ConfidenceExternalDefault is used when a successful response omits confidence
	ConfidenceExternalDefault = 0.7

	DefaultClassifierTimeout = 20 * time.Second
	DefaultMaxPromptBody     = 4000

	localSummaryChars    = 200
	externalSummaryChars = 500
)

// AttemptStatus tags the outcome of asking the external classifier
type AttemptStatus int

const (
	AttemptUnavailable AttemptStatus = iota
	AttemptSucceeded
	AttemptFailed
)

func (s AttemptStatus) String() string {
	switch s {
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailed:
		return "failed"
	default:
		return "unavailable"
	}
}

// Attempt is the tagged result of one external classification call.
// Response is set only for AttemptSucceeded, Reason only for AttemptFailed.
type Attempt struct {
	Status   AttemptStatus
	Response *ExternalClassification
	Reason   string
}

// Classifier reconciles an optional external classifier with the local heuristics.
// It never fails: every path yields a record that passes Classification.Validate.
type Classifier struct {
	capability   ai.ClassifierService
	timeout      time.Duration
	maxBodyChars int
}

// ClassifierOption customizes a Classifier
type ClassifierOption func(*Classifier)

// WithTimeout bounds each external classification call
func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxPromptBody caps how much of the body is sent to the external classifier
func WithMaxPromptBody(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.maxBodyChars = n
		}
	}
}

// NewClassifier creates a Classifier. A nil capability means the external classifier is unavailable.
func NewClassifier(capability ai.ClassifierService, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		capability:   capability,
		timeout:      DefaultClassifierTimeout,
		maxBodyChars: DefaultMaxPromptBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an external classifier is configured
func (c *Classifier) Enabled() bool {
	return c.capability != nil
}

// Classify produces the classification record for msg
func (c *Classifier) Classify(ctx context.Context, msg *domain.Message) *domain.Classification {
	attempt := c.attempt(ctx, msg)
	if attempt.Status == AttemptFailed {
		log.Printf("[Classifier] External classification failed for %s, using heuristics: %s", msg.ID, attempt.Reason)
	}
	return Reconcile(msg, attempt)
}

func (c *Classifier) attempt(ctx context.Context, msg *domain.Message) Attempt {
	if c.capability == nil {
		return Attempt{Status: AttemptUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	prompt := BuildClassificationPrompt(msg, c.maxBodyChars)
	go func() {
		text, err := c.capability.ClassifyEmail(ctx, prompt)
		done <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return Attempt{Status: AttemptFailed, Reason: fmt.Sprintf("classifier call: %v", ctx.Err())}
	}
	if res.err != nil {
		return Attempt{Status: AttemptFailed, Reason: fmt.Sprintf("classifier call: %v", res.err)}
	}

	parsed, err := ParseExternalClassification(res.text)
	if err != nil {
		return Attempt{Status: AttemptFailed, Reason: err.Error()}
	}
	return Attempt{Status: AttemptSucceeded, Response: parsed}
}

// Reconcile merges an attempt with the local baseline into one complete record
func Reconcile(msg *domain.Message, attempt Attempt) *domain.Classification {
	priority, urgency := ScoreUrgency(msg.Subject, msg.Body)

	switch attempt.Status {
	case AttemptSucceeded:
		if attempt.Response != nil {
			return mergeExternal(msg, attempt.Response, priority, urgency)
		}
		return localClassification(msg, priority, urgency, ConfidenceDegraded)
	case AttemptFailed:
		return localClassification(msg, priority, urgency, ConfidenceDegraded)
	default:
		return localClassification(msg, priority, urgency, ConfidenceLocal)
	}
}

func localClassification(msg *domain.Message, priority domain.PriorityTag, urgency int, confidence float64) *domain.Classification {
	summary := truncateRunes(strings.TrimSpace(msg.Body), localSummaryChars)
	if summary == "" {
		summary = msg.Subject
	}
	return &domain.Classification{
		Summary:          summary,
		Category:         domain.DefaultCategory,
		Sentiment:        SentimentFromBody(msg.Body),
		Priority:         priority,
		UrgencyScore:     urgency,
		RequiresResponse: true,
		Confidence:       confidence,
		Extraction:       ExtractEntities(msg.Body),
	}
}

// mergeExternal lets every present field override the local default.
// No cross-field correction: a well-typed score 9 with not_urgent is kept as is.
func mergeExternal(msg *domain.Message, ext *ExternalClassification, priority domain.PriorityTag, urgency int) *domain.Classification {
	rec := &domain.Classification{
		Summary:          msg.Subject,
		Category:         domain.DefaultCategory,
		Sentiment:        domain.SentimentNeutral,
		Priority:         priority,
		UrgencyScore:     urgency,
		RequiresResponse: true,
		Confidence:       ConfidenceExternalDefault,
		Extraction:       domain.EmptyExtraction(),
	}

	if ext.Summary != nil && *ext.Summary != "" {
		rec.Summary = truncateRunes(*ext.Summary, externalSummaryChars)
	}
	if ext.Category != nil && *ext.Category != "" {
		rec.Category = *ext.Category
	}
	if ext.Sentiment != nil {
		rec.Sentiment = *ext.Sentiment
	}
	if ext.Priority != nil {
		rec.Priority = *ext.Priority
	}
	if ext.UrgencyScore != nil {
		rec.UrgencyScore = *ext.UrgencyScore
	}
	if ext.RequiresResponse != nil {
		rec.RequiresResponse = *ext.RequiresResponse
	}
	if ext.Confidence != nil {
		rec.Confidence = *ext.Confidence
	}
	if ext.Extraction != nil {
		rec.Extraction = *ext.Extraction
	}
	return rec
}

// BuildClassificationPrompt renders the strict-JSON triage prompt for msg
func BuildClassificationPrompt(msg *domain.Message, maxBodyChars int) string {
	return fmt.Sprintf(`You are an expert support triage assistant. Analyze this email and return STRICT JSON with keys:
summary, category, sentiment (positive|neutral|negative), priority (urgent|not_urgent), urgency_score (1-10),
requires_response (true|false), confidence (0-1), extraction: {phone_numbers:[], emails:[], product_mentions:[], keywords:[]}.

Email:
Subject: %s
From: %s
Body:
%s
`, msg.Subject, msg.Sender, truncateRunes(msg.Body, maxBodyChars))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var errEmptyResponse = errors.New("empty classifier response")
