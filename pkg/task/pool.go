package task

import (
	"log/slog"
	"sync"
	"time"
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Name identifies the pool in logs.
	Name string

	// Max is the maximum number of workers. Default: DefaultPoolSize().
	Max int

	// KeepAlive is how long an idle worker waits before exiting.
	KeepAlive time.Duration

	// DrainTimeout bounds the drain of queued work after Shutdown.
	DrainTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// Pool is a bounded worker pool that prefers growing over queuing and never
// rejects work while it is running.
//
// A task is queued only when an idle worker is waiting to take it. Otherwise
// a new worker is started, up to Max. When Max is reached the task is
// re-queued and picked up by the next worker that becomes free.
type Pool struct {
	config PoolConfig
	logger *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []func()
	workers   int
	idle      int
	shutdown  bool
	cancelled bool

	wg   sync.WaitGroup
	done chan struct{}
}

// NewPool creates a pool. Workers are started on demand.
func NewPool(config PoolConfig) *Pool {
	if config.Max <= 0 {
		config.Max = DefaultPoolSize()
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = DefaultKeepAlive
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	if config.Name == "" {
		config.Name = "io"
	}

	p := &Pool{
		config: config,
		logger: loggerOrDiscard(config.Logger),
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Execute schedules fn. It returns false only after Terminate or Shutdown.
func (p *Pool) Execute(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return false
	}

	switch {
	case p.idle > len(p.queue):
		// An idle worker is waiting and will take it.
		p.queue = append(p.queue, fn)
		p.cond.Signal()
	case p.workers < p.config.Max:
		p.workers++
		p.wg.Add(1)
		go p.worker(fn)
	default:
		// Saturated: re-queue instead of rejecting.
		p.queue = append(p.queue, fn)
	}
	return true
}

// Terminate stops accepting work and waits while the workers drain the
// queue for up to DrainTimeout. Anything still queued after that is
// discarded. A task of this pool must call Shutdown instead: Terminate would
// wait for the calling worker itself.
func (p *Pool) Terminate() {
	<-p.Shutdown()
}

// Shutdown stops accepting work and returns at once. The queue drains in the
// background, bounded by DrainTimeout; the returned channel, also available
// from Done, is closed once the drain has finished or was cut off. Shutdown
// is idempotent and safe from inside a task of this pool.
func (p *Pool) Shutdown() <-chan struct{} {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return p.done
	}
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	go p.drain()
	return p.done
}

// Done is closed once a shutdown drain has finished.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

func (p *Pool) drain() {
	defer close(p.done)

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(p.config.DrainTimeout)
	defer timer.Stop()

	select {
	case <-drained:
	case <-timer.C:
		p.mu.Lock()
		dropped := len(p.queue)
		p.cancelled = true
		p.queue = nil
		p.cond.Broadcast()
		p.mu.Unlock()
		p.logger.Warn("pool drain timed out", "pool", p.config.Name, "dropped", dropped)
	}
}

// Terminated reports whether Terminate has been called.
func (p *Pool) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// Workers returns the current number of workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) worker(first func()) {
	defer p.wg.Done()

	fn := first
	for fn != nil {
		runSafely(p.logger, p.config.Name, fn)
		fn = p.next()
	}
}

// next blocks until a task is available, returning nil when the worker
// should exit (keep-alive elapsed, pool drained or cancelled).
func (p *Pool) next() func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(p.config.KeepAlive)
	for len(p.queue) == 0 {
		remaining := time.Until(deadline)
		if p.shutdown || p.cancelled || remaining <= 0 {
			p.workers--
			return nil
		}

		p.idle++
		wake := time.AfterFunc(remaining, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		p.cond.Wait()
		wake.Stop()
		p.idle--
	}

	fn := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return fn
}

var _ Executor = (*Pool)(nil)
