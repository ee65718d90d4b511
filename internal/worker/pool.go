// Package worker provides the bounded pool that runs blocking store calls
// (participant upserts, read-cursor updates, badge recomputation) off the
// connection message loops, so a slow database call never stalls relay for
// other participants.
package worker

import (
	"context"
	"log"
	"sync"
)

// Task is one unit of background work. The context is the pool's run
// context and is cancelled on shutdown.
type Task func(ctx context.Context)

// Pool is a fixed set of workers draining a bounded queue. Submit is
// non-blocking: when the queue is full the task is rejected instead of
// stalling the caller.
type Pool struct {
	tasks   chan Task
	workers int

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a pool with the given worker count and queue depth.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolAlreadyRunning
	}
	p.running = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(runCtx)
	}
	return nil
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.safeRun(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

// safeRun isolates panics so one bad task cannot take down a worker.
func (p *Pool) safeRun(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: task panicked: %v", r)
		}
	}()
	task(ctx)
}

// Submit queues a task. Returns ErrQueueFull when the pool is saturated,
// ErrPoolNotRunning before Start or after Stop.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return ErrPoolNotRunning
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels the run context and waits for workers to exit. Queued tasks
// that have not started are abandoned.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}
