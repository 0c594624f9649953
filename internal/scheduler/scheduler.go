package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	classifyusecase "mailsense-backend/internal/classify/usecase"
	emaildomain "mailsense-backend/internal/email/domain"
	emailusecase "mailsense-backend/internal/email/usecase"
	proposalusecase "mailsense-backend/internal/proposal/usecase"
)

// Scheduler drives the periodic pipeline: sync folders, classify what
// arrived, queue scored links and refresh cleanup proposals. Each pass is
// best-effort; a failing stage logs and the rest still runs.
type Scheduler struct {
	sync      emailusecase.SyncUsecase
	processor classifyusecase.Processor
	pipeline  classifyusecase.PipelineAdapter
	generator proposalusecase.Generator

	folders  []string
	interval time.Duration

	mu      sync.Mutex
	lastRun *time.Time
	running bool

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(
	syncUC emailusecase.SyncUsecase,
	processor classifyusecase.Processor,
	pipeline classifyusecase.PipelineAdapter,
	generator proposalusecase.Generator,
	folders []string,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		sync:      syncUC,
		processor: processor,
		pipeline:  pipeline,
		generator: generator,
		folders:   folders,
		interval:  interval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start launches the periodic loop. The first pass runs one interval after
// startup so the API is reachable before any heavy work begins.
func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Started, interval %s, folders %v", s.interval, s.folders)
	go func() {
		defer close(s.doneChan)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				log.Printf("[Scheduler] Stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// LastRun returns when the previous pass completed, nil before the first.
func (s *Scheduler) LastRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		now := time.Now().UTC()
		s.mu.Lock()
		s.running = false
		s.lastRun = &now
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	for _, folder := range s.folders {
		result, err := s.sync.Sync(ctx, folder, 0)
		switch {
		case errors.Is(err, emaildomain.ErrNotConnected):
			log.Printf("[Scheduler] Provider not connected, skipping pass")
			return
		case errors.Is(err, emaildomain.ErrSyncInProgress):
			log.Printf("[Scheduler] %s already syncing, skipping", folder)
		case err != nil:
			log.Printf("[Scheduler] Sync of %s failed: %v", folder, err)
		default:
			if result.Fetched > 0 {
				log.Printf("[Scheduler] Synced %s: %d new", folder, result.Fetched)
			}
		}
	}

	if _, err := s.processor.ProcessPending(ctx, 0); err != nil {
		log.Printf("[Scheduler] Classification pass failed: %v", err)
	}
	if _, err := s.pipeline.QueueReady(0); err != nil {
		log.Printf("[Scheduler] Pipeline pass failed: %v", err)
	}
	if _, err := s.generator.Generate(); err != nil {
		log.Printf("[Scheduler] Proposal pass failed: %v", err)
	}
}
