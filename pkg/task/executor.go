package task

import (
	"errors"
	"log/slog"
	"runtime"
	"time"
)

// Executor errors.
var (
	// ErrTerminated is returned when work is submitted to a terminated executor.
	ErrTerminated = errors.New("executor terminated")

	// ErrRejected is returned when an executor refused a task.
	ErrRejected = errors.New("task rejected")
)

// Executor defaults.
const (
	// DefaultKeepAlive is how long an idle worker waits for work before exiting.
	DefaultKeepAlive = 60 * time.Second

	// DefaultDrainTimeout bounds the graceful drain of the IO pool on Terminate.
	DefaultDrainTimeout = 5 * time.Second
)

// Executor runs submitted tasks asynchronously.
type Executor interface {
	// Execute schedules fn. It returns false if fn was not scheduled.
	Execute(fn func()) bool

	// Terminate stops the executor. It is idempotent.
	Terminate()

	// Terminated reports whether Terminate has been called.
	Terminated() bool
}

// Submit schedules fn on exec and converts a refusal into an error.
func Submit(exec Executor, fn func()) error {
	if exec.Terminated() {
		return ErrTerminated
	}
	if !exec.Execute(fn) {
		return ErrRejected
	}
	return nil
}

// DefaultPoolSize returns the IO pool size: max(2, NumCPU) * 2.
func DefaultPoolSize() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	return n * 2
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// runSafely runs fn and recovers a panic so a bad task cannot kill a worker.
func runSafely(logger *slog.Logger, executor string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "executor", executor, "panic", r)
		}
	}()
	fn()
}
