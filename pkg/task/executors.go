package task

import (
	"log/slog"
	"sync"
	"time"
)

// ExecutorsConfig configures an Executors set.
type ExecutorsConfig struct {
	// IOPoolSize is the maximum IO worker count. Default: DefaultPoolSize().
	IOPoolSize int

	// KeepAlive is the idle worker lifetime for IO, Manager and Server.
	KeepAlive time.Duration

	// DrainTimeout bounds the IO pool drain on Terminate.
	DrainTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// Executors is the categorized executor set owned by one engine instance.
type Executors struct {
	// Callback serializes user-visible callbacks.
	Callback *SerialExecutor

	// IO runs network fetches and other blocking work.
	IO *Pool

	// Manager runs registry maintenance loops.
	Manager *HandoffExecutor

	// Server runs socket receive and accept loops.
	Server *HandoffExecutor

	once sync.Once
}

// NewExecutors creates the four executors.
func NewExecutors(config ExecutorsConfig) *Executors {
	logger := loggerOrDiscard(config.Logger)
	return &Executors{
		Callback: NewSerialExecutor("callback", logger),
		IO: NewPool(PoolConfig{
			Name:         "io",
			Max:          config.IOPoolSize,
			KeepAlive:    config.KeepAlive,
			DrainTimeout: config.DrainTimeout,
			Logger:       logger,
		}),
		Manager: NewHandoffExecutor("manager", config.KeepAlive, logger),
		Server:  NewHandoffExecutor("server", config.KeepAlive, logger),
	}
}

// Terminate tears the set down exactly once and returns without waiting for
// IO work, so it is safe from inside any task the set dispatched. Loops are
// released first. The IO pool then stops accepting work and drains queued
// tasks in the background within its DrainTimeout; IODrained reports when
// that has finished. Callbacks produced by the draining work are refused.
func (e *Executors) Terminate() {
	e.once.Do(func() {
		e.Server.Terminate()
		e.Manager.Terminate()
		e.IO.Shutdown()
		e.Callback.Terminate()
	})
}

// IODrained is closed once the IO pool has drained after Terminate.
func (e *Executors) IODrained() <-chan struct{} {
	return e.IO.Done()
}

// Terminated reports whether every executor has been terminated.
func (e *Executors) Terminated() bool {
	return e.Server.Terminated() && e.Manager.Terminated() &&
		e.IO.Terminated() && e.Callback.Terminated()
}
