package domain

// Sentiment of a message as judged by the classifier
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known sentiments
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// PriorityTag is the coarse binary projection of the urgency score
type PriorityTag string

const (
	PriorityUrgent    PriorityTag = "urgent"
	PriorityNotUrgent PriorityTag = "not_urgent"
)

// Valid reports whether p is one of the known priority tags
func (p PriorityTag) Valid() bool {
	return p == PriorityUrgent || p == PriorityNotUrgent
}

const (
	MinUrgency = 1
	MaxUrgency = 10

	// UrgentThreshold is the lowest urgency score that maps to PriorityUrgent
	UrgentThreshold = 8

	// DefaultUrgency is used for ordering items that carry no classification
	DefaultUrgency = 5

	// DefaultCategory is the category label used whenever none is supplied
	DefaultCategory = "CUSTOMER_SUPPORT"
)

// Extraction holds contact and keyword mentions found in a message.
// ProductMentions and Keywords are only filled by the external classifier.
type Extraction struct {
	PhoneNumbers    []string `json:"phone_numbers"`
	Emails          []string `json:"emails"`
	ProductMentions []string `json:"product_mentions"`
	Keywords        []string `json:"keywords"`
}

// EmptyExtraction returns an extraction with non-nil empty collections
func EmptyExtraction() Extraction {
	return Extraction{
		PhoneNumbers:    []string{},
		Emails:          []string{},
		ProductMentions: []string{},
		Keywords:        []string{},
	}
}

// Classification is the reconciled classification of a single message
type Classification struct {
	EmailID          string      `json:"-" gorm:"primaryKey"`
	Summary          string      `json:"summary" gorm:"type:text"`
	Category         string      `json:"category" gorm:"index"`
	Sentiment        Sentiment   `json:"sentiment"`
	Priority         PriorityTag `json:"priority"`
	UrgencyScore     int         `json:"urgency_score"`
	RequiresResponse bool        `json:"requires_response"`
	Confidence       float64     `json:"confidence"`
	Extraction       Extraction  `json:"extraction" gorm:"column:extraction_json;type:text;serializer:json"`
}

// TableName specifies the table name for GORM
func (Classification) TableName() string {
	return "classifications"
}

// Validate enforces the documented ranges and enumerations.
// Consistency between UrgencyScore and Priority is not checked here.
func (c *Classification) Validate() error {
	if c == nil {
		return ErrInvalidClassification
	}
	if c.UrgencyScore < MinUrgency || c.UrgencyScore > MaxUrgency {
		return invalidClassification("urgency_score %d outside [%d, %d]", c.UrgencyScore, MinUrgency, MaxUrgency)
	}
	if c.Confidence < 0 || c.Confidence > 1 || c.Confidence != c.Confidence {
		return invalidClassification("confidence %v outside [0, 1]", c.Confidence)
	}
	if !c.Sentiment.Valid() {
		return invalidClassification("unknown sentiment %q", c.Sentiment)
	}
	if !c.Priority.Valid() {
		return invalidClassification("unknown priority %q", c.Priority)
	}
	return nil
}

// PriorityForScore maps an urgency score to its priority tag
func PriorityForScore(score int) PriorityTag {
	if score >= UrgentThreshold {
		return PriorityUrgent
	}
	return PriorityNotUrgent
}
