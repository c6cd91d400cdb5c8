package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/task"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// DefaultMargin is added to every computed wake deadline.
const DefaultMargin = 10 * time.Second

// HolderConfig configures a DeviceHolder.
type HolderConfig struct {
	// Margin is added to the next expiry when sleeping and is the minimum
	// sleep. Zero uses DefaultMargin.
	Margin time.Duration

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures device state changes. Nil disables capture.
	ProtocolLogger log.Logger
}

// DeviceHolder is the registry of discovered root devices keyed by UDN.
type DeviceHolder struct {
	config HolderConfig
	logger *slog.Logger
	plog   log.Logger

	mu        sync.Mutex
	devices   map[string]*upnp.Device
	onExpired func(*upnp.Device)

	wake chan struct{}
	loop *task.Loop
}

// NewDeviceHolder creates an empty, stopped registry.
func NewDeviceHolder(config HolderConfig) *DeviceHolder {
	if config.Margin <= 0 {
		config.Margin = DefaultMargin
	}
	h := &DeviceHolder{
		config:  config,
		logger:  config.Logger,
		plog:    log.OrNoop(config.ProtocolLogger),
		devices: make(map[string]*upnp.Device),
		wake:    make(chan struct{}, 1),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	h.loop = task.NewLoop("device-holder", h.run)
	return h
}

// OnExpired sets the listener invoked for every expired device. It runs on
// the registry loop without the registry lock held, so it may call back
// into the registry.
func (h *DeviceHolder) OnExpired(fn func(*upnp.Device)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onExpired = fn
}

// Add inserts d or replaces the entry with the same UDN, and wakes the loop.
// It reports whether the UDN was new.
func (h *DeviceHolder) Add(d *upnp.Device) bool {
	h.mu.Lock()
	_, exists := h.devices[d.UDN]
	h.devices[d.UDN] = d
	h.mu.Unlock()

	if exists {
		h.logState(d, "present", "renewed", "")
	} else {
		h.logState(d, "absent", "present", "")
	}
	h.signal()
	return !exists
}

// Get returns the device with the given UDN, or nil.
func (h *DeviceHolder) Get(udn string) *upnp.Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.devices[udn]
}

// Remove deletes the device with the given UDN.
func (h *DeviceHolder) Remove(udn string) bool {
	h.mu.Lock()
	d, ok := h.devices[udn]
	delete(h.devices, udn)
	h.mu.Unlock()

	if ok {
		h.logState(d, "present", "removed", "")
	}
	return ok
}

// RemoveDevice deletes d if it is the registered entry for its UDN.
func (h *DeviceHolder) RemoveDevice(d *upnp.Device) bool {
	h.mu.Lock()
	current, ok := h.devices[d.UDN]
	ok = ok && current == d
	if ok {
		delete(h.devices, d.UDN)
	}
	h.mu.Unlock()

	if ok {
		h.logState(d, "present", "removed", "")
	}
	return ok
}

// Clear removes every device without notifying the listener.
func (h *DeviceHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices = make(map[string]*upnp.Device)
}

// Len returns the number of registered devices.
func (h *DeviceHolder) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.devices)
}

// Devices returns a snapshot of the registered devices sorted by UDN.
func (h *DeviceHolder) Devices() []*upnp.Device {
	h.mu.Lock()
	out := make([]*upnp.Device, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d)
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UDN < out[j].UDN })
	return out
}

// Start runs the expiry loop on exec.
func (h *DeviceHolder) Start(exec task.Executor) error {
	if !h.loop.Start(exec) {
		return task.ErrTerminated
	}
	return nil
}

// Stop cancels the expiry loop. It is idempotent and safe before Start.
func (h *DeviceHolder) Stop() {
	h.loop.Stop()
}

// Done is closed once the expiry loop has returned.
func (h *DeviceHolder) Done() <-chan struct{} {
	return h.loop.Done()
}

func (h *DeviceHolder) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *DeviceHolder) run(ctx context.Context, ready func()) {
	timer := time.NewTimer(h.config.Margin)
	timer.Stop()
	defer timer.Stop()

	ready()
	for {
		now := time.Now()
		expired, next, listener := h.sweep(now)

		for _, d := range expired {
			h.logger.Debug("device expired", "udn", d.UDN, "expire_time", d.ExpireTime())
			h.logState(d, "present", "expired", "")
			if listener != nil {
				listener(d)
			}
		}

		var wait <-chan time.Time
		if !next.IsZero() {
			d := next.Sub(now) + h.config.Margin
			if d < h.config.Margin {
				d = h.config.Margin
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

// sweep removes expired devices and returns them oldest first together with
// the earliest remaining expiry (zero when nothing can expire).
func (h *DeviceHolder) sweep(now time.Time) ([]*upnp.Device, time.Time, func(*upnp.Device)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var expired []*upnp.Device
	var next time.Time
	for udn, d := range h.devices {
		if d.IsPinned() {
			continue
		}
		expire := d.ExpireTime()
		if expire.Before(now) {
			expired = append(expired, d)
			delete(h.devices, udn)
			continue
		}
		if next.IsZero() || expire.Before(next) {
			next = expire
		}
	}

	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].ExpireTime().Before(expired[j].ExpireTime())
	})
	return expired, next, h.onExpired
}

func (h *DeviceHolder) logState(d *upnp.Device, oldState, newState, reason string) {
	h.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		UDN:       d.UDN,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
