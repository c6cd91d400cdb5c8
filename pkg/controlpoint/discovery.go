package controlpoint

import (
	"context"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/description"
	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/ssdp"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// HandleMessage applies one accepted advertisement or search response.
// Unknown devices are described on the IO pool; a failed download only
// affects that device.
func (cp *ControlPoint) HandleMessage(msg *ssdp.Message) {
	udn := msg.UUID()
	if udn == "" {
		return
	}

	if msg.IsByeBye() {
		cp.byeBye(udn)
		return
	}

	if d := cp.Device(udn); d != nil {
		if d.Refresh(msg) {
			cp.devices.Add(d)
			cp.emit(Event{Type: EventDeviceUpdated, Device: d})
		}
		return
	}

	if msg.Location() == nil {
		cp.logger.Debug("advertisement without location", "udn", udn)
		return
	}

	exec, ctx, ok := cp.running()
	if !ok {
		return
	}

	cp.mu.Lock()
	if _, busy := cp.pending[udn]; busy {
		cp.mu.Unlock()
		return
	}
	cp.pending[udn] = struct{}{}
	cp.mu.Unlock()

	if !exec.IO.Execute(func() { cp.describe(ctx, udn, msg) }) {
		cp.clearPending(udn)
		cp.logger.Warn("description fetch not scheduled", "udn", udn)
	}
}

// describe downloads and parses the description advertised by msg and
// registers the resulting root device.
func (cp *ControlPoint) describe(ctx context.Context, udn string, msg *ssdp.Message) {
	defer cp.clearPending(udn)

	ctx, cancel := context.WithTimeout(ctx, cp.config.FetchTimeout)
	defer cancel()

	doc, err := cp.fetcher.Fetch(ctx, msg.Location())
	if err != nil {
		cp.describeFailed(udn, msg, err)
		return
	}
	d, err := description.Parse(doc, msg.Location())
	if err != nil {
		cp.describeFailed(udn, msg, err)
		return
	}

	// The IO pool drains after Stop; a stopped control point registers nothing.
	if ctx.Err() != nil {
		return
	}

	d.Refresh(msg)
	if cp.devices.Add(d) {
		cp.logger.Info("device added", "udn", d.UDN, "name", d.FriendlyName, "location", msg.Location().String())
		cp.emit(Event{Type: EventDeviceAdded, Device: d})
		return
	}
	cp.emit(Event{Type: EventDeviceUpdated, Device: d})
}

func (cp *ControlPoint) describeFailed(udn string, msg *ssdp.Message, err error) {
	cp.logger.Warn("description failed", "udn", udn, "location", msg.Location().String(), "error", err)
	cp.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerRegistry,
		Category:   log.CategoryError,
		RemoteAddr: msg.Location().Host,
		UDN:        udn,
		Error: &log.ErrorEventData{
			Layer:   log.LayerRegistry,
			Message: err.Error(),
			Context: "describe",
		},
	})
}

func (cp *ControlPoint) clearPending(udn string) {
	cp.mu.Lock()
	delete(cp.pending, udn)
	cp.mu.Unlock()
}

// byeBye unregisters the root device owning udn.
func (cp *ControlPoint) byeBye(udn string) {
	d := cp.Device(udn)
	if d == nil || d.IsPinned() {
		return
	}
	if !cp.devices.RemoveDevice(d) {
		return
	}
	cp.dropSubscriptions(d)
	cp.logger.Info("device removed", "udn", d.UDN)
	cp.emit(Event{Type: EventDeviceRemoved, Device: d})
}

func (cp *ControlPoint) deviceExpired(d *upnp.Device) {
	cp.dropSubscriptions(d)
	cp.logger.Info("device expired", "udn", d.UDN)
	cp.emit(Event{Type: EventDeviceExpired, Device: d})
}

// Register adds a manually configured device. It is pinned and never
// expires.
func (cp *ControlPoint) Register(d *upnp.Device) {
	d.Pin()
	if cp.devices.Add(d) {
		cp.emit(Event{Type: EventDeviceAdded, Device: d})
		return
	}
	cp.emit(Event{Type: EventDeviceUpdated, Device: d})
}

// Search multicasts an M-SEARCH for st and feeds every response to
// HandleMessage. Empty st searches for all devices.
func (cp *ControlPoint) Search(ctx context.Context, st string) ([]*ssdp.Message, error) {
	if _, _, ok := cp.running(); !ok {
		return nil, ErrNotStarted
	}
	msgs, err := cp.search.Search(ctx, st, cp.config.SearchWait)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		if !ssdp.ValidLocation(msg.Location()) {
			continue
		}
		if cp.config.Filter != nil && !cp.config.Filter(msg) {
			continue
		}
		cp.HandleMessage(msg)
	}
	return msgs, nil
}
