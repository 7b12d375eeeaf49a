package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const bodyWindow = 500

// Document is the searchable view of a processed message
type Document struct {
	Subject string
	Sender  string
	Body    string
}

// LevenshteinDistance calculates the edit distance between two normalized strings
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(Normalize(s1))
	r2 := []rune(Normalize(s2))

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// Two rows are enough for the distance
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// Threshold is the typo tolerance for a query: 1 for short queries, 3 for long ones
func Threshold(query string) int {
	n := len([]rune(Normalize(query)))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match checks if query fuzzy-matches text within the given edit distance
func Match(query, text string, threshold int) bool {
	query = Normalize(query)
	text = Normalize(text)
	if query == "" {
		return false
	}

	if strings.Contains(text, query) {
		return true
	}

	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) {
			return true
		}
		if LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}
	return false
}

// Score rates how relevant doc is to query. Zero means no match.
// Subject hits weigh most, then sender, then the start of the body.
func Score(query string, doc Document) float64 {
	query = Normalize(query)
	if query == "" {
		return 0
	}
	threshold := Threshold(query)
	score := 0.0

	subject := Normalize(doc.Subject)
	if strings.Contains(subject, query) {
		score += 100
		if containsWord(subject, query) {
			score += 50
		}
	} else {
		score += wordScore(query, subject, threshold, 50, 15, 40)
	}

	sender := Normalize(doc.Sender)
	if strings.Contains(sender, query) {
		score += 80
		if containsWord(sender, query) {
			score += 30
		}
	} else {
		score += wordScore(query, sender, threshold, 40, 12, 35)
	}

	body := []rune(doc.Body)
	if len(body) > bodyWindow {
		body = body[:bodyWindow]
	}
	bodyText := Normalize(string(body))
	if strings.Contains(bodyText, query) {
		score += 20
	} else if Match(query, bodyText, threshold) {
		score += 10
	}

	return score
}

// wordScore rewards near-miss and prefix matches against individual words
func wordScore(query, text string, threshold int, base, perEdit, prefix float64) float64 {
	score := 0.0
	for _, word := range strings.Fields(text) {
		if dist := LevenshteinDistance(query, word); dist <= threshold {
			score += base - float64(dist)*perEdit
		}
		if strings.HasPrefix(word, query) {
			score += prefix
		}
	}
	return score
}

// Normalize lowercases, strips diacritics and collapses whitespace
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ReplaceAll(stripped, "đ", "d")
	stripped = strings.ReplaceAll(stripped, "Đ", "D")
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// containsWord checks if text contains query as a whole word
func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if word == query {
			return true
		}
	}
	return false
}
