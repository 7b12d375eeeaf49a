package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"triage-backend/internal/triage/domain"
)

// ExternalClassification is a parsed and type-coerced classifier response.
// A nil field means the classifier did not supply it.
type ExternalClassification struct {
	Summary          *string
	Category         *string
	Sentiment        *domain.Sentiment
	Priority         *domain.PriorityTag
	UrgencyScore     *int
	RequiresResponse *bool
	Confidence       *float64
	Extraction       *domain.Extraction
}

// ParseExternalClassification strips formatting artifacts from a model answer and
// decodes it. Any type or range violation is reported as an error.
func ParseExternalClassification(text string) (*ExternalClassification, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, errEmptyResponse
	}
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("schema violation: classifier answer is not a JSON object")
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("failed to parse classifier JSON: %w", err)
	}

	out := &ExternalClassification{}
	var err error

	if out.Summary, err = optionalString(data, "summary"); err != nil {
		return nil, err
	}
	if out.Category, err = optionalString(data, "category"); err != nil {
		return nil, err
	}

	sentiment, err := optionalString(data, "sentiment")
	if err != nil {
		return nil, err
	}
	if sentiment != nil {
		s := domain.Sentiment(strings.ToLower(strings.TrimSpace(*sentiment)))
		if !s.Valid() {
			return nil, fmt.Errorf("schema violation: sentiment %q", *sentiment)
		}
		out.Sentiment = &s
	}

	priority, err := optionalString(data, "priority")
	if err != nil {
		return nil, err
	}
	if priority != nil {
		p := domain.PriorityTag(strings.ToLower(strings.TrimSpace(*priority)))
		if !p.Valid() {
			return nil, fmt.Errorf("schema violation: priority %q", *priority)
		}
		out.Priority = &p
	}

	if v, ok := present(data, "urgency_score"); ok {
		score, err := coerceInt(v)
		if err != nil {
			return nil, fmt.Errorf("urgency_score: %w", err)
		}
		if score < domain.MinUrgency || score > domain.MaxUrgency {
			return nil, fmt.Errorf("schema violation: urgency_score %d", score)
		}
		out.UrgencyScore = &score
	}

	if v, ok := present(data, "confidence"); ok {
		conf, err := coerceFloat(v)
		if err != nil {
			return nil, fmt.Errorf("confidence: %w", err)
		}
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			return nil, fmt.Errorf("schema violation: confidence %v", conf)
		}
		out.Confidence = &conf
	}

	if v, ok := present(data, "requires_response"); ok {
		b, err := coerceBool(v)
		if err != nil {
			return nil, fmt.Errorf("requires_response: %w", err)
		}
		out.RequiresResponse = &b
	}

	if v, ok := present(data, "extraction"); ok {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("schema violation: extraction is %T", v)
		}
		ext := domain.EmptyExtraction()
		fields := []struct {
			key string
			dst *[]string
		}{
			{"phone_numbers", &ext.PhoneNumbers},
			{"emails", &ext.Emails},
			{"product_mentions", &ext.ProductMentions},
			{"keywords", &ext.Keywords},
		}
		for _, f := range fields {
			list, err := optionalStringList(obj, f.key)
			if err != nil {
				return nil, fmt.Errorf("extraction.%w", err)
			}
			if list != nil {
				*f.dst = list
			}
		}
		out.Extraction = &ext
	}

	return out, nil
}

// stripCodeFence removes markdown code fences around the answer. Prose or
// arrays around the JSON object are left in place so decoding rejects them.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// present treats JSON null like an absent key
func present(data map[string]interface{}, key string) (interface{}, bool) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func optionalString(data map[string]interface{}, key string) (*string, error) {
	v, ok := present(data, key)
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("schema violation: %s is %T", key, v)
	}
	return &s, nil
}

func optionalStringList(data map[string]interface{}, key string) ([]string, error) {
	v, ok := present(data, key)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", key, v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string items, got %T", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}

func coerceInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("invalid number %v", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func coerceFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func coerceBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("unexpected type %T", v)
	}
}
