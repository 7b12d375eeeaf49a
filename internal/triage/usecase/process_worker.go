package usecase

import (
	"context"
	"log"
	"sync"

	"triage-backend/internal/triage/domain"
)

// processor is the part of the pipeline the workers drive
type processor interface {
	Process(ctx context.Context, msg *domain.Message) (*domain.ProcessedItem, error)
}

// ProcessWorkerService processes fetched messages in the background
type ProcessWorkerService struct {
	pipeline    processor
	jobQueue    chan *domain.Message
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// NewProcessWorkerService creates a new process worker service
func NewProcessWorkerService(pipeline processor, workerCount, queueSize int) *ProcessWorkerService {
	if workerCount <= 0 {
		workerCount = 3 // Default to 3 workers
	}
	if queueSize <= 0 {
		queueSize = 500
	}

	return &ProcessWorkerService{
		pipeline:    pipeline,
		jobQueue:    make(chan *domain.Message, queueSize),
		workerCount: workerCount,
	}
}

// Start starts the process workers
func (s *ProcessWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}

	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	log.Printf("[ProcessWorker] Started %d workers", s.workerCount)
}

// Stop drains the queue and waits for the workers to exit
func (s *ProcessWorkerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.jobQueue)
	s.mu.Unlock()

	s.workerWg.Wait()
	log.Println("[ProcessWorker] All workers stopped")
}

func (s *ProcessWorkerService) worker(id int) {
	defer s.workerWg.Done()

	for msg := range s.jobQueue {
		if _, err := s.pipeline.Process(context.Background(), msg); err != nil {
			log.Printf("[ProcessWorker] Worker %d failed on %s: %v", id, msg.ID, err)
		}
	}

	log.Printf("[ProcessWorker] Worker %d stopped", id)
}

// QueueJob adds a single message to the queue (non-blocking)
func (s *ProcessWorkerService) QueueJob(msg *domain.Message) bool {
	if msg == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	select {
	case s.jobQueue <- msg:
		return true
	default:
		return false // Queue full
	}
}

// QueueMessages queues a batch and returns how many were accepted
func (s *ProcessWorkerService) QueueMessages(messages []*domain.Message) int {
	queued := 0
	for _, msg := range messages {
		if s.QueueJob(msg) {
			queued++
		}
	}
	return queued
}
