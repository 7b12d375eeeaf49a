package usecase

import (
	"context"
	"io"

	"triage-backend/internal/triage/domain"
)

// TriageUsecase defines the interface for triage use cases
type TriageUsecase interface {
	Process(ctx context.Context, msg *domain.Message) (*domain.ProcessedItem, error)
	FetchMessages(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error)
	FetchAndProcess(ctx context.Context, opts domain.FetchOptions) ([]*domain.ProcessedItem, error)
	SubmitManual(ctx context.Context, sub domain.ManualSubmission) (*domain.ProcessedItem, error)
	SubmitRaw(ctx context.Context, raw io.Reader) (*domain.ProcessedItem, error)
	ListProcessed(limit int) ([]*domain.ProcessedItem, error)
	Search(query string, limit int) ([]*domain.ProcessedItem, error)
	NextItem() (*domain.ProcessedItem, bool)
	QueueDepth() int
	Stats() (*domain.Stats, error)
	ClassifierEnabled() bool
	SourceName() string
}

// MailboxSource fetches recent messages from a mailbox (Gmail, IMAP)
type MailboxSource interface {
	FetchRecent(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error)
}

// AlertPublisher announces urgent items to downstream subscribers
type AlertPublisher interface {
	PublishUrgent(ctx context.Context, item *domain.ProcessedItem) error
}
