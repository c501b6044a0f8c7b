package campaign

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Job is one unit of background send work.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	workers int
	jobs    chan Job

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Pool{workers: workers, jobs: make(chan Job, queueSize)}
}

// Start launches the workers. Jobs run with a context derived from ctx that
// is cancelled when ctx is or when Stop gives up waiting.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool already running")
	}
	if p.stopped {
		return ErrPoolStopped
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	logger.Info("send pool started", "workers", p.workers, "queue", cap(p.jobs))
	return nil
}

// Submit queues a job without blocking.
func (p *Pool) Submit(j Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs, lets queued and in-flight jobs finish, and waits for
// the workers to exit. If ctx expires first the job context is cancelled.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("send pool stop timed out, cancelling jobs")
		p.cancel()
		<-done
	}
	p.cancel()
	logger.Info("send pool stopped")
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(ctx, j)
	}
}

func (p *Pool) run(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("send job panicked", "panic", fmt.Sprint(r))
		}
	}()
	j(ctx)
}
