package task

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Socket reopen defaults.
const (
	// InitialBackoff is the first retry delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the retry delay.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the factor by which the delay grows.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// BackoffConfig customizes a Backoff. Zero fields take the defaults above,
// except Jitter where zero disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff hands out exponentially growing, jittered retry delays.
type Backoff struct {
	config BackoffConfig

	mu       sync.Mutex
	base     time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff with the default schedule (1s doubling to 60s,
// up to 25% jitter).
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig creates a backoff with a custom schedule.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		config: cfg,
		base:   cfg.Initial,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay and advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.base
	if b.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.config.Jitter * b.rng.Float64())
	}

	b.attempts++
	b.base = min(time.Duration(float64(b.base)*b.config.Multiplier), b.config.Max)
	return delay
}

// Wait sleeps for the next delay. It returns ctx.Err() if ctx ends first.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, waiting between attempts. It returns nil
// after the first success, or the last error of fn wrapped with ctx.Err()
// once ctx ends. onFailure, if set, sees each failed attempt.
func (b *Backoff) Retry(ctx context.Context, fn func() error, onFailure func(attempt int, err error)) error {
	for {
		if err := b.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if onFailure != nil {
			onFailure(b.Attempts(), err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: last attempt: %v", ctx.Err(), err)
		}
	}
}

// Reset returns to the initial delay. Call it after a successful reopen.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.base = b.config.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base of the next delay, without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base
}
