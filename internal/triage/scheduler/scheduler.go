package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"triage-backend/internal/triage/domain"
)

// Fetcher pulls a batch of recent messages
type Fetcher interface {
	FetchMessages(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error)
}

// Enqueuer accepts messages for background processing
type Enqueuer interface {
	QueueMessages(messages []*domain.Message) int
}

// FetchScheduler periodically fetches the mailbox and hands the batch to the workers
type FetchScheduler struct {
	fetcher  Fetcher
	workers  Enqueuer
	opts     domain.FetchOptions
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewFetchScheduler creates a new scheduler
func NewFetchScheduler(fetcher Fetcher, workers Enqueuer, interval time.Duration, opts domain.FetchOptions) *FetchScheduler {
	return &FetchScheduler{
		fetcher:  fetcher,
		workers:  workers,
		opts:     opts.WithDefaults(),
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop. A non-positive interval disables it.
func (s *FetchScheduler) Start() {
	if s.interval <= 0 {
		log.Println("[FetchScheduler] Interval not set, scheduler disabled")
		close(s.done)
		return
	}

	log.Printf("[FetchScheduler] Starting fetch scheduler (interval: %s)", s.interval)

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.fetchOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.fetchOnce()
			case <-s.stopChan:
				log.Println("[FetchScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for the loop to exit
func (s *FetchScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *FetchScheduler) fetchOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout())
	defer cancel()

	messages, err := s.fetcher.FetchMessages(ctx, s.opts)
	if err != nil {
		log.Printf("[FetchScheduler] Error fetching messages: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	queued := s.workers.QueueMessages(messages)
	log.Printf("[FetchScheduler] Queued %d of %d fetched messages", queued, len(messages))
}

func (s *FetchScheduler) fetchTimeout() time.Duration {
	if s.interval > 0 && s.interval < 2*time.Minute {
		return 2 * time.Minute
	}
	return s.interval
}
