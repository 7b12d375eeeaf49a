package usecase

import (
	"strings"
	"testing"

	"triage-backend/internal/triage/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassification(sentiment domain.Sentiment, priority domain.PriorityTag, confidence float64) *domain.Classification {
	urgency := 5
	if priority == domain.PriorityUrgent {
		urgency = 9
	}
	return &domain.Classification{
		Summary:          "Customer cannot reset password",
		Category:         domain.DefaultCategory,
		Sentiment:        sentiment,
		Priority:         priority,
		UrgencyScore:     urgency,
		RequiresResponse: true,
		Confidence:       confidence,
		Extraction:       domain.EmptyExtraction(),
	}
}

func TestGenerateDraftSections(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Password reset", Source: domain.SourceManual}

	t.Run("negative urgent", func(t *testing.T) {
		draft, err := GenerateDraft(msg, testClassification(domain.SentimentNegative, domain.PriorityUrgent, 0.9))
		require.NoError(t, err)

		assert.Equal(t, "Re: Password reset", draft.Subject)
		assert.Contains(t, draft.Body, "I'm sorry you're experiencing this.")
		assert.Contains(t, draft.Body, "- Customer cannot reset password")
		assert.Contains(t, draft.Body, "Prioritizing this as urgent")
		assert.Equal(t, domain.ToneProfessional, draft.Tone)
		assert.NotEmpty(t, draft.Reasoning)
	})

	t.Run("neutral not urgent", func(t *testing.T) {
		draft, err := GenerateDraft(msg, testClassification(domain.SentimentNeutral, domain.PriorityNotUrgent, 0.7))
		require.NoError(t, err)

		assert.NotContains(t, draft.Body, "sorry")
		assert.NotContains(t, draft.Body, "Prioritizing this as urgent")
		assert.Contains(t, draft.Body, "Next steps:")
		assert.True(t, strings.HasSuffix(draft.Body, "Best regards,\nSupport Team"))
	})
}

func TestGenerateDraftConfidenceFloor(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Hi", Source: domain.SourceManual}

	low, err := GenerateDraft(msg, testClassification(domain.SentimentNeutral, domain.PriorityNotUrgent, 0.55))
	require.NoError(t, err)
	assert.Equal(t, 0.6, low.Confidence)

	high, err := GenerateDraft(msg, testClassification(domain.SentimentNeutral, domain.PriorityNotUrgent, 0.92))
	require.NoError(t, err)
	assert.Equal(t, 0.92, high.Confidence)
}

func TestAutoSendRecommended(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		priority   domain.PriorityTag
		want       bool
	}{
		{"confident not urgent", 0.9, domain.PriorityNotUrgent, true},
		{"boundary not urgent", 0.85, domain.PriorityNotUrgent, true},
		{"boundary urgent", 0.85, domain.PriorityUrgent, false},
		{"confident urgent", 0.99, domain.PriorityUrgent, false},
		{"below threshold not urgent", 0.84, domain.PriorityNotUrgent, false},
		{"low urgent", 0.55, domain.PriorityUrgent, false},
	}

	msg := &domain.Message{ID: "m1", Subject: "Hi", Source: domain.SourceManual}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := testClassification(domain.SentimentNeutral, tt.priority, tt.confidence)
			assert.Equal(t, tt.want, AutoSendRecommended(cls))

			draft, err := GenerateDraft(msg, cls)
			require.NoError(t, err)
			assert.Equal(t, tt.want, draft.AutoSendRecommended)
		})
	}
}

func TestGenerateDraftRejectsInvalidClassification(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Hi", Source: domain.SourceManual}

	cls := testClassification(domain.SentimentNeutral, domain.PriorityNotUrgent, 1.4)
	_, err := GenerateDraft(msg, cls)
	assert.ErrorIs(t, err, domain.ErrInvalidClassification)

	cls = testClassification(domain.SentimentNeutral, domain.PriorityNotUrgent, 0.7)
	cls.UrgencyScore = 11
	_, err = GenerateDraft(msg, cls)
	assert.ErrorIs(t, err, domain.ErrInvalidClassification)

	_, err = GenerateDraft(msg, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidClassification)
}
