package task

import (
	"context"
	"sync"
	"time"
)

// ReadyTimeout bounds how long Start waits for a loop to report readiness.
const ReadyTimeout = 1 * time.Second

// LoopFunc is the body of a background loop. It must return once ctx is
// cancelled and should call ready once it has begun waiting for work.
type LoopFunc func(ctx context.Context, ready func())

// Loop wraps a long-lived body with start/stop control.
type Loop struct {
	name string
	body LoopFunc

	mu  sync.Mutex
	run *loopRun
}

// loopRun is the state of one Start..Stop cycle.
type loopRun struct {
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

func (r *loopRun) notifyReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}

// NewLoop creates a stopped loop.
func NewLoop(name string, body LoopFunc) *Loop {
	return &Loop{name: name, body: body}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start submits the body to exec and waits for it to report readiness,
// bounded by ReadyTimeout. Starting a running loop is a no-op. It returns
// false if exec refused the body.
func (l *Loop) Start(exec Executor) bool {
	l.mu.Lock()
	if l.run != nil {
		l.mu.Unlock()
		return true
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &loopRun{
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	l.run = run
	l.mu.Unlock()

	ok := exec.Execute(func() {
		defer l.finish(run)
		l.body(ctx, run.notifyReady)
	})
	if !ok {
		cancel()
		l.finish(run)
		return false
	}

	l.waitReady(run, ReadyTimeout)
	return true
}

// Stop cancels the running body. The body exits at its next wake; Stop does
// not wait for it. Stop is idempotent and safe before Start.
func (l *Loop) Stop() {
	l.mu.Lock()
	run := l.run
	l.mu.Unlock()

	if run != nil {
		run.cancel()
	}
}

// Running reports whether a body is currently scheduled or executing.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run != nil
}

// Done returns a channel closed when the current body has returned. For a
// loop that is not running the channel is already closed.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.run.done
}

// WaitReady blocks until the current body reports readiness or timeout
// elapses. It returns false on timeout or when the loop is not running.
func (l *Loop) WaitReady(timeout time.Duration) bool {
	l.mu.Lock()
	run := l.run
	l.mu.Unlock()

	if run == nil {
		return false
	}
	return l.waitReady(run, timeout)
}

func (l *Loop) waitReady(run *loopRun, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-run.ready:
		return true
	case <-run.done:
		return false
	case <-timer.C:
		return false
	}
}

func (l *Loop) finish(run *loopRun) {
	run.cancel()
	l.mu.Lock()
	if l.run == run {
		l.run = nil
	}
	l.mu.Unlock()
	close(run.done)
}
