package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

// Holder defaults.
const (
	// DefaultMargin is added to the granted timeout to form the expiry time.
	DefaultMargin = 10 * time.Second

	// DefaultRenewLead is how long before the granted timeout ends a renewal
	// is attempted. It is capped at half the timeout.
	DefaultRenewLead = 30 * time.Second

	// DefaultRenewTimeout bounds one renewal round trip.
	DefaultRenewTimeout = 10 * time.Second

	// DefaultTimeout is the timeout a control point requests when the caller
	// does not name one.
	DefaultTimeout = 1800 * time.Second
)

// Renewable is an active subscription as seen by the holder.
type Renewable interface {
	// SubscriptionID returns the SID, empty if not subscribed.
	SubscriptionID() string

	// Renew extends the subscription and returns the granted timeout. A zero
	// duration keeps the previous timeout.
	Renew(ctx context.Context) (time.Duration, error)
}

// Config configures a Holder.
type Config struct {
	Margin       time.Duration
	RenewLead    time.Duration
	RenewTimeout time.Duration

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures subscription state changes. Nil disables capture.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default holder configuration.
func DefaultConfig() Config {
	return Config{
		Margin:       DefaultMargin,
		RenewLead:    DefaultRenewLead,
		RenewTimeout: DefaultRenewTimeout,
	}
}

// Entry is a snapshot of one held subscription. Timeout and ExpireTime are
// zero for an infinite grant.
type Entry struct {
	SID          string
	Subscription Renewable
	Timeout      time.Duration
	AutoRenew    bool
	ExpireTime   time.Time
}

// entry is the holder's mutable record for one SID.
type entry struct {
	sid       string
	sub       Renewable
	timeout   time.Duration
	autoRenew bool

	// deadline is when the publisher drops the subscription.
	deadline time.Time

	// expireTime is deadline plus the margin.
	expireTime time.Time
}

func (e *entry) reset(now time.Time, timeout, margin time.Duration) {
	e.timeout = timeout
	if e.infinite() {
		e.deadline, e.expireTime = time.Time{}, time.Time{}
		return
	}
	e.deadline = now.Add(timeout)
	e.expireTime = e.deadline.Add(margin)
}

// infinite reports whether the publisher granted an unlimited subscription.
func (e *entry) infinite() bool {
	return e.timeout <= 0
}

// renewAt returns when an auto-renew entry becomes due.
func (e *entry) renewAt(lead time.Duration) time.Time {
	if half := e.timeout / 2; half < lead {
		lead = half
	}
	return e.deadline.Add(-lead)
}

func (e *entry) snapshot() Entry {
	return Entry{
		SID:          e.sid,
		Subscription: e.sub,
		Timeout:      e.timeout,
		AutoRenew:    e.autoRenew,
		ExpireTime:   e.expireTime,
	}
}
