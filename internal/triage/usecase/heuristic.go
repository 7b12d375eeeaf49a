package usecase

import (
	"regexp"
	"strings"

	"triage-backend/internal/triage/domain"
)

const (
	baselineUrgency = 5
	ceilingUrgency  = 9
)

// urgencyTerms raise the heuristic score to the ceiling. Matches do not stack.
var urgencyTerms = []string{
	"urgent",
	"immediately",
	"asap",
	"critical",
	"cannot access",
	"down",
	"blocked",
	"error",
	"failed",
}

// negativeTerms mark a body as negative when no external sentiment is available
var negativeTerms = []string{"cannot", "unable", "error", "issue", "down"}

var (
	// optional country code, optional area code, then 3+4 digits (at least 7 significant digits)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// ScoreUrgency derives a priority tag and urgency score from subject and body.
// It is total and deterministic.
func ScoreUrgency(subject, body string) (domain.PriorityTag, int) {
	text := strings.ToLower(subject + " " + body)
	score := baselineUrgency
	for _, term := range urgencyTerms {
		if strings.Contains(text, term) {
			score = ceilingUrgency
			break
		}
	}
	return domain.PriorityForScore(score), score
}

// ExtractEntities finds phone numbers and email addresses in text.
// Both sets are deduplicated in order of first appearance. Product mentions and
// keywords are left empty: only the external classifier fills them.
func ExtractEntities(text string) domain.Extraction {
	ext := domain.EmptyExtraction()
	ext.PhoneNumbers = uniqueMatches(phonePattern, text)
	ext.Emails = uniqueMatches(emailPattern, text)
	return ext
}

// SentimentFromBody is the local sentiment signal used when no classifier answer is usable
func SentimentFromBody(body string) domain.Sentiment {
	lower := strings.ToLower(body)
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			return domain.SentimentNegative
		}
	}
	return domain.SentimentNeutral
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		result = append(result, m)
	}
	return result
}
