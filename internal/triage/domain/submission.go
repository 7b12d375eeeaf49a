package domain

import "time"

// ManualSubmission is a message typed or pasted in by an agent
type ManualSubmission struct {
	Sender   string     `json:"sender"`
	Subject  string     `json:"subject"`
	Body     string     `json:"body"`
	SentDate *time.Time `json:"sent_date,omitempty"`
}
