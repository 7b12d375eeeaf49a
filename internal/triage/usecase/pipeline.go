package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/internal/triage/queue"
	"triage-backend/internal/triage/repository"
	"triage-backend/pkg/fuzzy"
	"triage-backend/pkg/mimeparse"

	"github.com/google/uuid"
)

const (
	snippetChars = 140
	searchWindow = 200
)

// Pipeline runs messages through classification, drafting, persistence and the priority queue
type Pipeline struct {
	classifier *Classifier
	repo       repository.TriageRepository
	queue      *queue.PriorityQueue

	source     MailboxSource
	sourceName string
	alerts     AlertPublisher

	now func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// PipelineOption customizes a Pipeline
type PipelineOption func(*Pipeline)

// WithMailboxSource sets the mailbox fetched by FetchAndProcess
func WithMailboxSource(name string, source MailboxSource) PipelineOption {
	return func(p *Pipeline) {
		p.source = source
		p.sourceName = name
	}
}

// WithAlertPublisher sets the publisher notified about urgent items
func WithAlertPublisher(alerts AlertPublisher) PipelineOption {
	return func(p *Pipeline) {
		p.alerts = alerts
	}
}

// WithPipelineClock replaces time.Now for ids and manual dates
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a new triage pipeline
func NewPipeline(classifier *Classifier, repo repository.TriageRepository, q *queue.PriorityQueue, opts ...PipelineOption) *Pipeline {
	if q == nil {
		q = queue.NewPriorityQueue()
	}
	p := &Pipeline{
		classifier: classifier,
		repo:       repo,
		queue:      q,
		sourceName: "none",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process classifies and drafts a single message, stores the result and queues it
func (p *Pipeline) Process(ctx context.Context, msg *domain.Message) (*domain.ProcessedItem, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := p.repo.UpsertMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to store message %s: %w", msg.ID, err)
	}

	cls := p.classifier.Classify(ctx, msg)

	draft, err := GenerateDraft(msg, cls)
	if err != nil {
		return nil, fmt.Errorf("failed to draft reply for %s: %w", msg.ID, err)
	}

	if err := p.repo.UpsertClassification(msg.ID, cls); err != nil {
		return nil, fmt.Errorf("failed to store classification %s: %w", msg.ID, err)
	}
	if err := p.repo.UpsertDraft(msg.ID, draft); err != nil {
		return nil, fmt.Errorf("failed to store draft %s: %w", msg.ID, err)
	}

	item := &domain.ProcessedItem{Record: msg, Classification: cls, Draft: draft}
	p.queue.Push(item)

	if item.IsUrgent() && p.alerts != nil {
		if err := p.alerts.PublishUrgent(ctx, item); err != nil {
			log.Printf("[Pipeline] Failed to publish urgent alert for %s: %v", msg.ID, err)
		}
	}

	log.Printf("[Pipeline] Processed %s: category=%s priority=%s urgency=%d confidence=%.2f",
		msg.ID, cls.Category, cls.Priority, cls.UrgencyScore, cls.Confidence)
	return item, nil
}

// FetchMessages pulls recent messages from the configured mailbox without processing them
func (p *Pipeline) FetchMessages(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error) {
	if p.source == nil {
		return nil, domain.ErrSourceUnavailable
	}
	return p.source.FetchRecent(ctx, opts.WithDefaults())
}

// FetchAndProcess fetches a batch and processes each message. Messages that
// fail to process are logged and left out of the result.
func (p *Pipeline) FetchAndProcess(ctx context.Context, opts domain.FetchOptions) ([]*domain.ProcessedItem, error) {
	messages, err := p.FetchMessages(ctx, opts)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.ProcessedItem, 0, len(messages))
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		item, err := p.Process(ctx, msg)
		if err != nil {
			log.Printf("[Pipeline] Skipping %s: %v", msg.ID, err)
			continue
		}
		items = append(items, item)
	}

	p.mu.Lock()
	p.lastRun = p.now()
	p.mu.Unlock()

	log.Printf("[Pipeline] Fetched %d messages from %s, processed %d", len(messages), p.sourceName, len(items))
	return items, nil
}

// SubmitManual processes a message entered by hand
func (p *Pipeline) SubmitManual(ctx context.Context, sub domain.ManualSubmission) (*domain.ProcessedItem, error) {
	if strings.TrimSpace(sub.Body) == "" && strings.TrimSpace(sub.Subject) == "" {
		return nil, fmt.Errorf("%w: subject or body is required", domain.ErrInvalidMessage)
	}

	now := p.now()
	sent := now
	if sub.SentDate != nil && !sub.SentDate.IsZero() {
		sent = *sub.SentDate
	}

	msg := &domain.Message{
		ID:       NewManualID(now),
		Sender:   strings.TrimSpace(sub.Sender),
		Subject:  strings.TrimSpace(sub.Subject),
		Body:     sub.Body,
		SentDate: sent,
		Snippet:  truncateRunes(strings.TrimSpace(sub.Body), snippetChars),
		IsUnread: true,
		Source:   domain.SourceManual,
	}
	return p.Process(ctx, msg)
}

// SubmitRaw parses an RFC 5322 message and submits it as a manual message
func (p *Pipeline) SubmitRaw(ctx context.Context, raw io.Reader) (*domain.ProcessedItem, error) {
	parsed, err := mimeparse.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	sub := domain.ManualSubmission{
		Sender:  parsed.From(),
		Subject: parsed.Subject,
		Body:    parsed.Body(),
	}
	if !parsed.Date.IsZero() {
		sub.SentDate = &parsed.Date
	}
	return p.SubmitManual(ctx, sub)
}

// NewManualID returns manual-<unix-millis>-<8 hex chars>
func NewManualID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("manual-%d-%s", now.UnixMilli(), suffix)
}

// ListProcessed returns the newest stored items
func (p *Pipeline) ListProcessed(limit int) ([]*domain.ProcessedItem, error) {
	return p.repo.ListProcessed(limit)
}

// Search ranks the newest stored items against query with typo tolerance.
// Ties on relevance go to the more urgent item.
func (p *Pipeline) Search(query string, limit int) ([]*domain.ProcessedItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}

	candidates, err := p.repo.ListProcessed(searchWindow)
	if err != nil {
		return nil, err
	}

	type hit struct {
		item  *domain.ProcessedItem
		score float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, item := range candidates {
		score := fuzzy.Score(query, fuzzy.Document{
			Subject: item.Record.Subject,
			Sender:  item.Record.Sender,
			Body:    item.Record.Body,
		})
		if score > 0 {
			hits = append(hits, hit{item: item, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].item.Urgency() > hits[j].item.Urgency()
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]*domain.ProcessedItem, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.item)
	}
	return results, nil
}

// NextItem pops the most urgent queued item
func (p *Pipeline) NextItem() (*domain.ProcessedItem, bool) {
	return p.queue.Pop()
}

// QueueDepth returns the number of queued items
func (p *Pipeline) QueueDepth() int {
	return p.queue.Len()
}

// Stats summarizes stored results
func (p *Pipeline) Stats() (*domain.Stats, error) {
	total, err := p.repo.CountMessages()
	if err != nil {
		return nil, err
	}
	drafts, err := p.repo.CountDrafts()
	if err != nil {
		return nil, err
	}
	categories, err := p.repo.CountByCategory()
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		TotalProcessed: int(total),
		DraftsCreated:  int(drafts),
		EmailsSent:     0,
		Categories:     categories,
	}

	p.mu.Lock()
	if !p.lastRun.IsZero() {
		stats.LastRun = p.lastRun.UTC().Format(time.RFC3339)
	}
	p.mu.Unlock()

	return stats, nil
}

// ClassifierEnabled reports whether an external classifier is configured
func (p *Pipeline) ClassifierEnabled() bool {
	return p.classifier.Enabled()
}

// SourceName names the configured mailbox source
func (p *Pipeline) SourceName() string {
	return p.sourceName
}
