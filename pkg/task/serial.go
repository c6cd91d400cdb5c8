package task

import (
	"log/slog"
	"sync"
)

// SerialExecutor runs tasks one at a time in submission order.
type SerialExecutor struct {
	name   string
	logger *slog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []func()
	terminated bool

	done chan struct{}
}

// NewSerialExecutor creates a single-worker executor and starts its worker.
func NewSerialExecutor(name string, logger *slog.Logger) *SerialExecutor {
	e := &SerialExecutor{
		name:   name,
		logger: loggerOrDiscard(logger),
		done:   make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Execute appends fn to the queue.
func (e *SerialExecutor) Execute(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return false
	}
	e.queue = append(e.queue, fn)
	e.cond.Signal()
	return true
}

// Terminate discards queued tasks and stops the worker after the running
// task, if any, returns. It does not wait.
func (e *SerialExecutor) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return
	}
	e.terminated = true
	e.queue = nil
	e.cond.Broadcast()
}

// Terminated reports whether Terminate has been called.
func (e *SerialExecutor) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// Done is closed when the worker has exited.
func (e *SerialExecutor) Done() <-chan struct{} {
	return e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.terminated {
			e.cond.Wait()
		}
		if e.terminated {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		runSafely(e.logger, e.name, fn)
	}
}

var _ Executor = (*SerialExecutor)(nil)
