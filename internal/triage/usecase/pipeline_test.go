package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/internal/triage/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo is an in-memory TriageRepository
type memoryRepo struct {
	mu              sync.Mutex
	messages        map[string]*domain.Message
	classifications map[string]*domain.Classification
	drafts          map[string]*domain.Draft
	failMessages    error
	failDrafts      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		messages:        map[string]*domain.Message{},
		classifications: map[string]*domain.Classification{},
		drafts:          map[string]*domain.Draft{},
	}
}

func (r *memoryRepo) UpsertMessage(msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMessages != nil {
		return r.failMessages
	}
	copied := *msg
	r.messages[msg.ID] = &copied
	return nil
}

func (r *memoryRepo) UpsertClassification(emailID string, cls *domain.Classification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cls
	copied.EmailID = emailID
	r.classifications[emailID] = &copied
	return nil
}

func (r *memoryRepo) UpsertDraft(emailID string, draft *domain.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDrafts != nil {
		return r.failDrafts
	}
	copied := *draft
	copied.EmailID = emailID
	r.drafts[emailID] = &copied
	return nil
}

func (r *memoryRepo) ListProcessed(limit int) ([]*domain.ProcessedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*domain.ProcessedItem, 0, len(r.messages))
	for id, m := range r.messages {
		items = append(items, &domain.ProcessedItem{Record: m, Classification: r.classifications[id], Draft: r.drafts[id]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Record.SentDate.After(items[j].Record.SentDate) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *memoryRepo) CountByCategory() (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, c := range r.classifications {
		counts[c.Category]++
	}
	return counts, nil
}

func (r *memoryRepo) CountMessages() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.messages)), nil
}

func (r *memoryRepo) CountDrafts() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.drafts)), nil
}

type fakeSource struct {
	messages []*domain.Message
	err      error
	gotOpts  domain.FetchOptions
}

func (f *fakeSource) FetchRecent(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error) {
	f.gotOpts = opts
	return f.messages, f.err
}

type recordingAlerts struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (a *recordingAlerts) PublishUrgent(ctx context.Context, item *domain.ProcessedItem) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, item.ID())
	return a.err
}

func inboxMessage(id, subject, body string, sent time.Time) *domain.Message {
	return &domain.Message{
		ID:       id,
		Sender:   "customer@example.com",
		Subject:  subject,
		Body:     body,
		SentDate: sent,
		IsUnread: true,
		Source:   domain.SourceGmail,
	}
}

func TestProcessStoresQueuesAndAlerts(t *testing.T) {
	repo := newMemoryRepo()
	alerts := &recordingAlerts{}
	p := NewPipeline(NewClassifier(nil), repo, queue.NewPriorityQueue(), WithAlertPublisher(alerts))

	urgent := inboxMessage("u1", "URGENT: checkout down", "Customers cannot pay", time.Now())
	item, err := p.Process(context.Background(), urgent)
	require.NoError(t, err)

	assert.Same(t, urgent, item.Record)
	assert.Equal(t, domain.PriorityUrgent, item.Classification.Priority)
	require.NotNil(t, item.Draft)
	assert.Equal(t, "Re: URGENT: checkout down", item.Draft.Subject)

	assert.Contains(t, repo.messages, "u1")
	assert.Contains(t, repo.classifications, "u1")
	assert.Contains(t, repo.drafts, "u1")
	assert.Equal(t, []string{"u1"}, alerts.ids)
	assert.Equal(t, 1, p.QueueDepth())

	calm := inboxMessage("c1", "Billing address", "How do I change my billing address?", time.Now())
	_, err = p.Process(context.Background(), calm)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, alerts.ids)

	next, ok := p.NextItem()
	require.True(t, ok)
	assert.Equal(t, "u1", next.ID())
	next, ok = p.NextItem()
	require.True(t, ok)
	assert.Equal(t, "c1", next.ID())
	_, ok = p.NextItem()
	assert.False(t, ok)
}

func TestProcessRejectsInvalidMessage(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil)

	_, err := p.Process(context.Background(), &domain.Message{Source: domain.SourceGmail})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = p.Process(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	assert.Equal(t, 0, p.QueueDepth())
}

func TestProcessPersistenceFailureIsNotQueued(t *testing.T) {
	repo := newMemoryRepo()
	repo.failMessages = errors.New("db down")
	p := NewPipeline(NewClassifier(nil), repo, nil)

	_, err := p.Process(context.Background(), inboxMessage("m1", "Hi", "Hello", time.Now()))
	assert.Error(t, err)
	assert.Equal(t, 0, p.QueueDepth())

	repo.failMessages = nil
	repo.failDrafts = errors.New("disk full")
	_, err = p.Process(context.Background(), inboxMessage("m2", "Hi", "Hello", time.Now()))
	assert.Error(t, err)
	assert.Equal(t, 0, p.QueueDepth())
}

func TestProcessAlertFailureIsNotFatal(t *testing.T) {
	alerts := &recordingAlerts{err: errors.New("pubsub unavailable")}
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil, WithAlertPublisher(alerts))

	item, err := p.Process(context.Background(), inboxMessage("u1", "Critical", "Everything failed", time.Now()))
	require.NoError(t, err)
	assert.True(t, item.IsUrgent())
	assert.Equal(t, 1, p.QueueDepth())
}

func TestFetchAndProcess(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	source := &fakeSource{messages: []*domain.Message{
		inboxMessage("a", "Question", "Where is my invoice?", base),
		{ID: "", Source: domain.SourceGmail},
		inboxMessage("b", "Outage", "The API is down", base.Add(time.Minute)),
	}}
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil,
		WithMailboxSource("gmail", source),
		WithPipelineClock(func() time.Time { return base.Add(time.Hour) }))

	items, err := p.FetchAndProcess(context.Background(), domain.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.DefaultFetchMaxResults, source.gotOpts.MaxResults)
	assert.Equal(t, 2, p.QueueDepth())

	stats, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 2, stats.DraftsCreated)
	assert.Equal(t, 0, stats.EmailsSent)
	assert.Equal(t, map[string]int{domain.DefaultCategory: 2}, stats.Categories)
	assert.Equal(t, "2024-06-01T09:00:00Z", stats.LastRun)
	assert.Equal(t, "gmail", p.SourceName())
}

func TestFetchWithoutSource(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil)

	_, err := p.FetchAndProcess(context.Background(), domain.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, "none", p.SourceName())
}

func TestFetchSourceError(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil, WithMailboxSource("imap", &fakeSource{err: errors.New("login failed")}))

	_, err := p.FetchAndProcess(context.Background(), domain.FetchOptions{})
	assert.Error(t, err)

	stats, err := p.Stats()
	require.NoError(t, err)
	assert.Empty(t, stats.LastRun)
}

func TestSubmitManual(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil, WithPipelineClock(func() time.Time { return now }))

	body := strings.Repeat("a", 200)
	item, err := p.SubmitManual(context.Background(), domain.ManualSubmission{
		Sender:  " agent@example.com ",
		Subject: "Pasted ticket",
		Body:    body,
	})
	require.NoError(t, err)

	msg := item.Record
	assert.Regexp(t, `^manual-1719835200000-[0-9a-f]{8}$`, msg.ID)
	assert.Equal(t, domain.SourceManual, msg.Source)
	assert.Equal(t, "agent@example.com", msg.Sender)
	assert.Equal(t, now, msg.SentDate)
	assert.Len(t, msg.Snippet, 140)
	assert.Equal(t, body, msg.Body)
}

func TestSubmitManualRequiresContent(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil)

	_, err := p.SubmitManual(context.Background(), domain.ManualSubmission{Sender: "x@example.com", Body: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestSubmitRaw(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil)

	raw := "From: Sam <sam@example.com>\r\n" +
		"Subject: Cannot access account\r\n" +
		"Date: Tue, 04 Jun 2024 10:00:00 +0000\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Reach me at sam.alt@example.org\r\n"

	item, err := p.SubmitRaw(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "Sam <sam@example.com>", item.Record.Sender)
	assert.Equal(t, "Cannot access account", item.Record.Subject)
	assert.True(t, item.Record.SentDate.Equal(time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, domain.PriorityUrgent, item.Classification.Priority)
	assert.Equal(t, []string{"sam.alt@example.org"}, item.Classification.Extraction.Emails)
}

func TestNewManualIDIsUnique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, NewManualID(now), NewManualID(now))
}

func TestSearch(t *testing.T) {
	p := NewPipeline(NewClassifier(nil), newMemoryRepo(), nil)
	base := time.Now()

	for _, m := range []*domain.Message{
		inboxMessage("r1", "Refund request", "Please return my money", base),
		inboxMessage("r2", "Order question", "Can I get a refund? The app is down", base.Add(time.Minute)),
		inboxMessage("l1", "Login help", "Password reset", base.Add(2*time.Minute)),
	} {
		_, err := p.Process(context.Background(), m)
		require.NoError(t, err)
	}

	results, err := p.Search("refnd", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].ID())
	assert.Equal(t, "r2", results[1].ID())

	results, err = p.Search("refund", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = p.Search("   ", 10)
	assert.Error(t, err)
}
