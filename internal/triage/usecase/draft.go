package usecase

import (
	"fmt"
	"math"
	"strings"

	"triage-backend/internal/triage/domain"
)

const (
	draftConfidenceFloor = 0.6
	autoSendThreshold    = 0.85
	replyPrefix          = "Re: "
	draftReasoning       = "Template reply tuned to sentiment and priority."
)

// GenerateDraft builds the templated reply for a classified message.
// It only fails when cls violates the documented ranges.
func GenerateDraft(msg *domain.Message, cls *domain.Classification) (*domain.Draft, error) {
	if err := cls.Validate(); err != nil {
		return nil, err
	}

	empathy := ""
	if cls.Sentiment == domain.SentimentNegative {
		empathy = "I'm sorry you're experiencing this. "
	}

	lines := []string{
		"Hi,",
		"",
		fmt.Sprintf("%sThanks for reaching out. Here's a quick summary of what I understand:", empathy),
		"- " + cls.Summary,
		"",
		"Next steps:",
		"- We're reviewing your case now.",
	}
	if cls.Priority == domain.PriorityUrgent {
		lines = append(lines, "- Prioritizing this as urgent; we'll follow up shortly.")
	}
	lines = append(lines,
		"",
		"Best regards,",
		"Support Team",
	)

	return &domain.Draft{
		Subject:             replyPrefix + msg.Subject,
		Body:                strings.Join(lines, "\n"),
		Tone:                domain.ToneProfessional,
		Confidence:          math.Max(draftConfidenceFloor, cls.Confidence),
		AutoSendRecommended: AutoSendRecommended(cls),
		Reasoning:           draftReasoning,
	}, nil
}

// AutoSendRecommended is true only for confident, non-urgent classifications
func AutoSendRecommended(cls *domain.Classification) bool {
	return cls.Confidence >= autoSendThreshold && cls.Priority == domain.PriorityNotUrgent
}
