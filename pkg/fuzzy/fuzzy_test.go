package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"refund", "refund", 0},
		{"refund", "refnud", 2},
		{"kitten", "sitting", 3},
		{"Café", "cafe", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 1, Threshold("vpn"))
	assert.Equal(t, 2, Threshold("refund"))
	assert.Equal(t, 3, Threshold("subscription"))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("refund", "Please REFUND my order", 2))
	assert.True(t, Match("refnd", "Please refund my order", 2))
	assert.True(t, Match("invo", "invoice missing", 1))
	assert.False(t, Match("shipping", "login problem", 2))
	assert.False(t, Match("  ", "anything", 2))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "dang nhap loi", Normalize("  Đăng   nhập LỖI "))
	assert.Equal(t, "resume", Normalize("Résumé"))
}

func TestScoreRanksSubjectAboveBody(t *testing.T) {
	inSubject := Document{Subject: "Refund request", Sender: "a@example.com", Body: "order 42"}
	inBody := Document{Subject: "Order question", Sender: "b@example.com", Body: "I would like a refund"}
	none := Document{Subject: "Login", Sender: "c@example.com", Body: "password reset"}

	assert.Greater(t, Score("refund", inSubject), Score("refund", inBody))
	assert.Greater(t, Score("refund", inBody), 0.0)
	assert.Equal(t, 0.0, Score("refund", none))
	assert.Equal(t, 0.0, Score("", inSubject))
}

func TestScoreSender(t *testing.T) {
	doc := Document{Subject: "Hello", Sender: "Jane Doe <jane@example.com>"}
	assert.Greater(t, Score("jane", doc), 0.0)
	assert.Greater(t, Score("jnae", doc), 0.0)
}
