package domain

import (
	"strings"
	"time"
)

// Source identifies where a message entered the system
type Source string

const (
	SourceGmail  Source = "gmail"
	SourceIMAP   Source = "imap"
	SourceManual Source = "manual"
)

// Message is a normalized inbound support message. It is never mutated after creation.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body" gorm:"type:text"`
	SentDate  time.Time `json:"sent_date" gorm:"index"`
	Snippet   string    `json:"snippet,omitempty"`
	IsUnread  bool      `json:"is_unread"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "emails"
}

// Validate checks the fields every pipeline stage relies on
func (m *Message) Validate() error {
	if m == nil {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(m.ID) == "" {
		return invalidMessage("id is required")
	}
	switch m.Source {
	case SourceGmail, SourceIMAP, SourceManual:
	default:
		return invalidMessage("unknown source %q", m.Source)
	}
	return nil
}
