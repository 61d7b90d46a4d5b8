// ABOUTME: Worker pool runs independent per-feed jobs with bounded concurrency
// ABOUTME: Used by the fetch phase and by the transform fan-out

package workers

import (
	"context"
	"sync"
)

// Job is a unit of work run by one worker. ctx is cancelled when the pool
// stops.
type Job func(ctx context.Context)

// Pool manages a fixed set of worker goroutines fed from a job queue
type Pool struct {
	jobQueue   chan Job
	maxWorkers int
	queueSize  int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	running    bool
	stopped    bool
}

// WorkerConfig holds configuration for the worker pool
type WorkerConfig struct {
	MaxWorkers int
	QueueSize  int
}

// DefaultWorkerConfig returns the default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxWorkers: 8,
		QueueSize:  64,
	}
}

// NewPool creates a worker pool. Zero values in config take the defaults.
func NewPool(config WorkerConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultWorkerConfig().MaxWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultWorkerConfig().QueueSize
	}

	return &Pool{
		jobQueue:   make(chan Job, config.QueueSize),
		maxWorkers: config.MaxWorkers,
		queueSize:  config.QueueSize,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker goroutines. A stopped pool cannot be restarted.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrWorkerStopped
	}
	if p.running {
		return nil
	}

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.run()
	}

	p.running = true
	return nil
}

// Stop closes the queue, waits for queued jobs to finish and then cancels
// the pool context
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	close(p.jobQueue)
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	return nil
}

// Submit queues a job, blocking while the queue is full until ctx is done
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrWorkerNotRunning
	}

	select {
	case p.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues a job without blocking
func (p *Pool) TrySubmit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrWorkerNotRunning
	}

	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// run is the main loop for each worker
func (p *Pool) run() {
	defer p.wg.Done()

	for job := range p.jobQueue {
		job(p.ctx)
	}
}

// ForEach runs fn for every index in [0, n) on a temporary pool and waits
// for all of them. Indexes not yet submitted when ctx is done are skipped
// and ctx.Err() is returned.
func ForEach(ctx context.Context, config WorkerConfig, n int, fn func(ctx context.Context, i int)) error {
	if n == 0 {
		return nil
	}
	if config.MaxWorkers > n {
		config.MaxWorkers = n
	}

	pool := NewPool(config)
	if err := pool.Start(); err != nil {
		return err
	}

	var submitErr error
	for i := 0; i < n; i++ {
		i := i
		if err := pool.Submit(ctx, func(context.Context) { fn(ctx, i) }); err != nil {
			submitErr = err
			break
		}
	}

	_ = pool.Stop()
	return submitErr
}

// Error definitions
var (
	ErrWorkerNotRunning = &WorkerError{Message: "worker pool is not running"}
	ErrWorkerStopped    = &WorkerError{Message: "worker pool has been stopped"}
	ErrQueueFull        = &WorkerError{Message: "job queue is full"}
)

// WorkerError represents a worker-specific error
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return e.Message
}
