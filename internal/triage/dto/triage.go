package dto

import (
	"time"

	"triage-backend/internal/triage/domain"
)

type FetchRequest struct {
	MaxResults    int      `json:"max_results"`
	LookbackHours int      `json:"lookback_hours"`
	OnlyUnread    *bool    `json:"only_unread"`
	QueryTerms    []string `json:"query_terms"`
}

func (r FetchRequest) Options() domain.FetchOptions {
	return domain.FetchOptions{
		MaxResults:    r.MaxResults,
		LookbackHours: r.LookbackHours,
		OnlyUnread:    r.OnlyUnread,
		QueryTerms:    r.QueryTerms,
	}
}

type ProcessRequest struct {
	Sender   string     `json:"sender"`
	Subject  string     `json:"subject"`
	Body     string     `json:"body" binding:"required"`
	SentDate *time.Time `json:"sent_date"`
}

func (r ProcessRequest) Submission() domain.ManualSubmission {
	return domain.ManualSubmission{
		Sender:   r.Sender,
		Subject:  r.Subject,
		Body:     r.Body,
		SentDate: r.SentDate,
	}
}

type ItemsResponse struct {
	Items []*domain.ProcessedItem `json:"items"`
	Count int                     `json:"count"`
}

type HealthResponse struct {
	Status            string    `json:"status"`
	ClassifierEnabled bool      `json:"classifier_enabled"`
	MailSource        string    `json:"mail_source"`
	QueueDepth        int       `json:"queue_depth"`
	Time              time.Time `json:"time"`
}
