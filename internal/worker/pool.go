// Package worker provides background processing for lyrics jobs.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// Handler processes a single job. The context is canceled when the pool stops.
type Handler func(ctx context.Context, job ports.LyricsJob)

// Pool manages background workers for async jobs.
type Pool struct {
	handler Handler
	logger  *zap.Logger
	jobs    chan ports.LyricsJob
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a worker pool with the given queue size.
func NewPool(handler Handler, queueSize int, logger *zap.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		logger:  logger.Named("worker"),
		jobs:    make(chan ports.LyricsJob, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.process(job)
			}
		}()
	}
}

// Stop closes the queue, cancels in-flight jobs and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job ports.LyricsJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("dropping job, queue full", zap.String("track_id", job.TrackID))
		return false
	}
}

func (p *Pool) process(job ports.LyricsJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.String("job_id", job.ID), zap.Any("panic", r))
		}
	}()

	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("track_id", job.TrackID))
	p.handler(p.ctx, job)
}
