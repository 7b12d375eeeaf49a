package domain

// Tone of a reply draft. Only ToneProfessional is produced today.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneConcise      Tone = "concise"
)

// Draft is a generated reply for a classified message
type Draft struct {
	EmailID             string  `json:"-" gorm:"primaryKey"`
	Subject             string  `json:"subject"`
	Body                string  `json:"body" gorm:"type:text"`
	Tone                Tone    `json:"tone"`
	Confidence          float64 `json:"confidence"`
	AutoSendRecommended bool    `json:"auto_send_recommended"`
	Reasoning           string  `json:"reasoning,omitempty"`
}

// TableName specifies the table name for GORM
func (Draft) TableName() string {
	return "drafts"
}
