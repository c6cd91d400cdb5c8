package task

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// HandoffExecutor hands every task directly to a worker. There is no queue:
// a task reaches an idle worker immediately or starts a new one.
type HandoffExecutor struct {
	name      string
	keepAlive time.Duration
	logger    *slog.Logger

	handoff chan func()
	ctx     context.Context
	cancel  context.CancelFunc

	terminated atomic.Bool
	workers    atomic.Int32
}

// NewHandoffExecutor creates a hand-off executor. Idle workers exit after
// keepAlive (DefaultKeepAlive when zero).
func NewHandoffExecutor(name string, keepAlive time.Duration, logger *slog.Logger) *HandoffExecutor {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HandoffExecutor{
		name:      name,
		keepAlive: keepAlive,
		logger:    loggerOrDiscard(logger),
		handoff:   make(chan func()),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Execute hands fn to an idle worker or starts a new one.
func (e *HandoffExecutor) Execute(fn func()) bool {
	if e.terminated.Load() {
		return false
	}

	select {
	case e.handoff <- fn:
	default:
		e.workers.Add(1)
		go e.worker(fn)
	}
	return true
}

// Terminate stops accepting work and releases idle workers. Running tasks
// are not interrupted; they observe cancellation through their own context.
func (e *HandoffExecutor) Terminate() {
	if e.terminated.Swap(true) {
		return
	}
	e.cancel()
}

// Terminated reports whether Terminate has been called.
func (e *HandoffExecutor) Terminated() bool {
	return e.terminated.Load()
}

// Workers returns the number of live workers, busy or idle.
func (e *HandoffExecutor) Workers() int {
	return int(e.workers.Load())
}

func (e *HandoffExecutor) worker(fn func()) {
	defer e.workers.Add(-1)

	idle := time.NewTimer(e.keepAlive)
	defer idle.Stop()

	for {
		runSafely(e.logger, e.name, fn)

		idle.Reset(e.keepAlive)
		select {
		case fn = <-e.handoff:
		case <-idle.C:
			return
		case <-e.ctx.Done():
			return
		}
	}
}

var _ Executor = (*HandoffExecutor)(nil)
