package subscription

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/task"
)

// minWake keeps a publisher granting tiny timeouts from spinning the loop.
const minWake = 10 * time.Millisecond

// Holder tracks subscriptions by SID and runs the expiry and renewal loop.
type Holder struct {
	config Config
	logger *slog.Logger
	plog   log.Logger

	mu      sync.Mutex
	entries map[string]*entry

	// Callbacks
	onExpired     func(Renewable)
	onRenewFailed func(Renewable, error)
	onRenewed     func(Renewable, time.Duration)

	wake chan struct{}
	loop *task.Loop
}

// NewHolder creates an empty, stopped holder. Zero config fields take their
// defaults.
func NewHolder(config Config) *Holder {
	if config.Margin <= 0 {
		config.Margin = DefaultMargin
	}
	if config.RenewLead <= 0 {
		config.RenewLead = DefaultRenewLead
	}
	if config.RenewTimeout <= 0 {
		config.RenewTimeout = DefaultRenewTimeout
	}

	h := &Holder{
		config:  config,
		logger:  config.Logger,
		plog:    log.OrNoop(config.ProtocolLogger),
		entries: make(map[string]*entry),
		wake:    make(chan struct{}, 1),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	h.loop = task.NewLoop("subscription-holder", h.run)
	return h
}

// OnExpired sets the listener for subscriptions that lapsed without renewal.
func (h *Holder) OnExpired(fn func(Renewable)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onExpired = fn
}

// OnRenewFailed sets the listener for subscriptions removed after a failed
// renewal.
func (h *Holder) OnRenewFailed(fn func(Renewable, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRenewFailed = fn
}

// OnRenewed sets the listener for successful renewals.
func (h *Holder) OnRenewed(fn func(Renewable, time.Duration)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRenewed = fn
}

// Add stores sub with the granted timeout. A zero or negative timeout is an
// infinite grant: the entry never expires and is never renewed. A
// subscription without a SID is ignored and Add returns false. An existing
// entry for the SID is replaced.
func (h *Holder) Add(sub Renewable, timeout time.Duration, autoRenew bool) bool {
	sid := sub.SubscriptionID()
	if sid == "" {
		return false
	}
	if timeout < 0 {
		timeout = 0
	}

	e := &entry{sid: sid, sub: sub, autoRenew: autoRenew}
	e.reset(time.Now(), timeout, h.config.Margin)

	h.mu.Lock()
	h.entries[sid] = e
	h.mu.Unlock()

	h.logger.Debug("subscription added", "sid", sid, "timeout", timeout, "auto_renew", autoRenew)
	h.logState(sid, "pending", "active", "")
	h.signal()
	return true
}

// Get returns the subscription with the given SID.
func (h *Holder) Get(sid string) (Renewable, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[sid]
	if !ok {
		return nil, false
	}
	return e.sub, true
}

// Entry returns a snapshot of the entry with the given SID.
func (h *Holder) Entry(sid string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[sid]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Remove deletes the subscription with the given SID.
func (h *Holder) Remove(sid string) bool {
	h.mu.Lock()
	_, ok := h.entries[sid]
	delete(h.entries, sid)
	h.mu.Unlock()

	if ok {
		h.logState(sid, "active", "removed", "")
	}
	return ok
}

// Clear removes every subscription without notifying listeners.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string]*entry)
}

// Len returns the number of held subscriptions.
func (h *Holder) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns snapshots of all entries sorted by SID.
func (h *Holder) Entries() []Entry {
	h.mu.Lock()
	out := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.snapshot())
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// Start runs the expiry and renewal loop on exec.
func (h *Holder) Start(exec task.Executor) error {
	if !h.loop.Start(exec) {
		return task.ErrTerminated
	}
	return nil
}

// Stop cancels the loop. A renewal in flight is cancelled through its
// context. Stop is idempotent and safe before Start.
func (h *Holder) Stop() {
	h.loop.Stop()
}

// Done is closed once the loop has returned.
func (h *Holder) Done() <-chan struct{} {
	return h.loop.Done()
}

func (h *Holder) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Holder) run(ctx context.Context, ready func()) {
	timer := time.NewTimer(h.config.Margin)
	timer.Stop()
	defer timer.Stop()

	ready()
	for {
		expired, due, onExpired := h.sweep(time.Now())
		for _, e := range expired {
			h.logger.Info("subscription expired", "sid", e.sid)
			h.logState(e.sid, "active", "expired", "")
			if onExpired != nil {
				onExpired(e.sub)
			}
		}

		for _, e := range due {
			if ctx.Err() != nil {
				return
			}
			h.renew(ctx, e)
		}

		var wait <-chan time.Time
		if next, ok := h.nextWake(); ok {
			d := time.Until(next)
			if d < minWake {
				d = minWake
			}
			timer.Reset(d)
			wait = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-h.wake:
			timer.Stop()
		case <-wait:
		}
	}
}

// sweep removes lapsed plain entries and collects auto-renew entries that
// are due, both oldest first.
func (h *Holder) sweep(now time.Time) (expired, due []*entry, onExpired func(Renewable)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sid, e := range h.entries {
		if e.infinite() {
			continue
		}
		if e.autoRenew {
			if !now.Before(e.renewAt(h.config.RenewLead)) {
				due = append(due, e)
			}
			continue
		}
		if e.expireTime.Before(now) {
			expired = append(expired, e)
			delete(h.entries, sid)
		}
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].expireTime.Before(expired[j].expireTime) })
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return expired, due, h.onExpired
}

// renew performs one synchronous renewal without holding the lock.
func (h *Holder) renew(ctx context.Context, e *entry) {
	rctx, cancel := context.WithTimeout(ctx, h.config.RenewTimeout)
	granted, err := e.sub.Renew(rctx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	now := time.Now()

	h.mu.Lock()
	current, present := h.entries[e.sid]
	present = present && current == e
	if present {
		if err != nil {
			delete(h.entries, e.sid)
		} else {
			if granted <= 0 {
				granted = e.timeout
			}
			e.reset(now, granted, h.config.Margin)
		}
	}
	onRenewed, onRenewFailed := h.onRenewed, h.onRenewFailed
	h.mu.Unlock()

	// Removed or replaced while the renewal was in flight.
	if !present {
		return
	}

	if err != nil {
		h.logger.Warn("subscription renewal failed", "sid", e.sid, "error", err)
		h.logState(e.sid, "active", "removed", "renew failed: "+err.Error())
		if onRenewFailed != nil {
			onRenewFailed(e.sub, err)
		}
		return
	}

	h.logger.Debug("subscription renewed", "sid", e.sid, "timeout", granted)
	h.logState(e.sid, "active", "renewed", "")
	if onRenewed != nil {
		onRenewed(e.sub, granted)
	}
}

// nextWake returns the earliest renewal or expiry time over all entries.
func (h *Holder) nextWake() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var next time.Time
	for _, e := range h.entries {
		if e.infinite() {
			continue
		}
		at := e.expireTime
		if e.autoRenew {
			at = e.renewAt(h.config.RenewLead)
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next, !next.IsZero()
}

func (h *Holder) logState(sid, oldState, newState, reason string) {
	h.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		SID:       sid,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
