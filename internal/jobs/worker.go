package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval and whenever it is
// triggered. A zero interval disables polling.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	triggerChan  chan struct{}
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		triggerChan:  make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Trigger requests a run without waiting for the next tick. Triggers that
// arrive while one is already pending are coalesced.
func (w *Worker) Trigger() {
	select {
	case w.triggerChan <- struct{}{}:
	default:
	}
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	var tick <-chan time.Time
	if w.pollInterval > 0 {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Printf("reindex worker started with poll interval: %v", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("reindex worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("reindex worker stopped: stop signal received")
			return
		case <-tick:
			w.run(ctx)
		case <-w.triggerChan:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("reindex worker: %v", err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("reindex worker shutdown complete")
}
