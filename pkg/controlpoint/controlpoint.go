package controlpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/upnp-engine/upnp-go/pkg/description"
	"github.com/upnp-engine/upnp-go/pkg/gena"
	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/registry"
	"github.com/upnp-engine/upnp-go/pkg/ssdp"
	"github.com/upnp-engine/upnp-go/pkg/subscription"
	"github.com/upnp-engine/upnp-go/pkg/task"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

const (
	// unsubscribeTimeout bounds each UNSUBSCRIBE sent during Stop.
	unsubscribeTimeout = 2 * time.Second

	// loopExitTimeout bounds the wait for registry loops to return.
	loopExitTimeout = 2 * time.Second
)

// ControlPoint discovers UPnP devices and manages event subscriptions.
type ControlPoint struct {
	mu sync.RWMutex

	config Config
	state  State
	logger *slog.Logger
	plog   log.Logger

	devices *registry.DeviceHolder
	subs    *subscription.Holder
	fetcher description.Fetcher
	search  Searcher
	client  *gena.Client

	// Created by Start.
	executors *task.Executors
	receivers []*ssdp.Receiver
	callback  *gena.CallbackServer

	// UDNs with a description download in flight.
	pending map[string]struct{}

	// Held for writing while a SUBSCRIBE is in flight so the initial event,
	// which may overtake the response, is not rejected as unknown.
	subscribing sync.RWMutex

	eventHandlers []EventHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped control point.
func New(config Config) (*ControlPoint, error) {
	for _, network := range config.Networks {
		if network != "udp4" && network != "udp6" {
			return nil, fmt.Errorf("unsupported network %q", network)
		}
	}
	config.applyDefaults()

	cp := &ControlPoint{
		config:  config,
		state:   StateIdle,
		logger:  config.Logger,
		plog:    log.OrNoop(config.ProtocolLogger),
		fetcher: config.Fetcher,
		search:  config.Searcher,
		pending: make(map[string]struct{}),
	}
	if cp.logger == nil {
		cp.logger = slog.New(slog.DiscardHandler)
	}
	if cp.fetcher == nil {
		cp.fetcher = description.NewHTTPFetcher(config.FetchTimeout)
	}
	if cp.search == nil {
		cp.search = ssdp.NewSearcher("", config.Logger)
	}
	cp.client = gena.NewClient(0, config.Logger, config.ProtocolLogger)

	cp.devices = registry.NewDeviceHolder(registry.HolderConfig{
		Margin:         config.DeviceMargin,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	cp.devices.OnExpired(cp.deviceExpired)

	cp.subs = subscription.NewHolder(config.Subscription)
	cp.subs.OnExpired(cp.subscriptionExpired)
	cp.subs.OnRenewFailed(cp.subscriptionFailed)
	cp.subs.OnRenewed(cp.subscriptionRenewed)

	return cp, nil
}

// State returns the current lifecycle state.
func (cp *ControlPoint) State() State {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.state
}

// OnEvent registers an event handler.
func (cp *ControlPoint) OnEvent(handler EventHandler) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.eventHandlers = append(cp.eventHandlers, handler)
}

// Start brings up the executors, registries, callback server and SSDP
// receivers. Receivers are opened concurrently; if any fails, everything
// opened so far is torn down and the error returned.
func (cp *ControlPoint) Start(ctx context.Context) error {
	cp.mu.Lock()
	if cp.state != StateIdle && cp.state != StateStopped {
		cp.mu.Unlock()
		return ErrAlreadyStarted
	}
	cp.state = StateStarting
	cp.ctx, cp.cancel = context.WithCancel(ctx)
	cp.executors = task.NewExecutors(task.ExecutorsConfig{
		IOPoolSize: cp.config.IOPoolSize,
		Logger:     cp.config.Logger,
	})
	exec := cp.executors
	cp.mu.Unlock()

	if err := cp.startComponents(exec); err != nil {
		_ = cp.teardown()
		cp.mu.Lock()
		cp.state = StateStopped
		cp.mu.Unlock()
		return err
	}

	cp.mu.Lock()
	cp.state = StateRunning
	receivers := len(cp.receivers)
	addr := cp.callback.Addr().String()
	cp.mu.Unlock()

	cp.logger.Info("control point started", "receivers", receivers, "callback", addr)
	return nil
}

func (cp *ControlPoint) startComponents(exec *task.Executors) error {
	callback, err := gena.NewCallbackServer(gena.CallbackConfig{
		Address:        cp.config.CallbackAddress,
		Listener:       cp.handleNotify,
		Logger:         cp.config.Logger,
		ProtocolLogger: cp.config.ProtocolLogger,
	})
	if err != nil {
		return err
	}
	cp.mu.Lock()
	cp.callback = callback
	cp.mu.Unlock()

	if err := callback.Start(exec.Server); err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	if err := cp.devices.Start(exec.Manager); err != nil {
		return fmt.Errorf("start device registry: %w", err)
	}
	if err := cp.subs.Start(exec.Manager); err != nil {
		return fmt.Errorf("start subscription registry: %w", err)
	}

	if cp.config.DisableSSDP {
		return nil
	}
	receivers, err := cp.newReceivers()
	if err != nil {
		return err
	}
	cp.mu.Lock()
	cp.receivers = receivers
	cp.mu.Unlock()

	var g errgroup.Group
	for _, r := range receivers {
		g.Go(func() error {
			return r.Start(exec.Server)
		})
	}
	return g.Wait()
}

// newReceivers creates one receiver per selected interface and network.
func (cp *ControlPoint) newReceivers() ([]*ssdp.Receiver, error) {
	ifaces, err := multicastInterfaces(cp.config.Interfaces)
	if err != nil {
		return nil, err
	}

	var receivers []*ssdp.Receiver
	for _, network := range cp.config.Networks {
		for _, ifi := range ifaces {
			if _, _, ok := ssdp.InterfacePrefix(ifi, network); !ok {
				continue
			}
			r, err := ssdp.NewReceiver(ssdp.ReceiverConfig{
				Interface:      ifi,
				Network:        network,
				Port:           cp.config.Port,
				SegmentCheck:   cp.config.SegmentCheck,
				Filter:         cp.config.Filter,
				OnMessage:      cp.HandleMessage,
				Logger:         cp.config.Logger,
				ProtocolLogger: cp.config.ProtocolLogger,
			})
			if err != nil {
				return nil, fmt.Errorf("receiver %s/%s: %w", ifi.Name, network, err)
			}
			receivers = append(receivers, r)
		}
	}
	if len(receivers) == 0 {
		return nil, ErrNoInterfaces
	}
	return receivers, nil
}

// multicastInterfaces returns the named interfaces, or every interface that
// is up, multicast capable and not loopback.
func multicastInterfaces(names []string) ([]*net.Interface, error) {
	if len(names) > 0 {
		ifaces := make([]*net.Interface, 0, len(names))
		for _, name := range names {
			ifi, err := net.InterfaceByName(name)
			if err != nil {
				return nil, fmt.Errorf("interface %q: %w", name, err)
			}
			ifaces = append(ifaces, ifi)
		}
		return ifaces, nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ifaces []*net.Interface
	for i := range all {
		ifi := &all[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifaces = append(ifaces, ifi)
	}
	return ifaces, nil
}

// Stop unsubscribes every active subscription, closes all sockets and
// terminates the executors. It is idempotent; the returned error aggregates
// every failure seen while shutting down.
func (cp *ControlPoint) Stop() error {
	cp.mu.Lock()
	if cp.state != StateRunning {
		cp.mu.Unlock()
		return nil
	}
	cp.state = StateStopping
	cp.mu.Unlock()

	var err error
	for _, entry := range cp.subs.Entries() {
		sub, ok := entry.Subscription.(*Subscription)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		err = multierr.Append(err, cp.unsubscribe(ctx, sub))
		cancel()
	}

	err = multierr.Append(err, cp.teardown())

	cp.mu.Lock()
	cp.state = StateStopped
	cp.mu.Unlock()

	cp.logger.Info("control point stopped")
	return err
}

// teardown releases everything Start created.
func (cp *ControlPoint) teardown() error {
	cp.mu.Lock()
	receivers := cp.receivers
	callback := cp.callback
	exec := cp.executors
	cancel := cp.cancel
	cp.receivers = nil
	cp.callback = nil
	cp.pending = make(map[string]struct{})
	cp.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, r := range receivers {
		r.Stop()
	}

	var err error
	if callback != nil {
		err = multierr.Append(err, callback.Stop())
	}
	cp.devices.Stop()
	cp.subs.Stop()
	waitDone(cp.devices.Done(), loopExitTimeout)
	waitDone(cp.subs.Done(), loopExitTimeout)
	cp.subs.Clear()
	cp.devices.Clear()

	if exec != nil {
		exec.Terminate()
	}
	return err
}

// Devices returns the registered root devices sorted by UDN.
func (cp *ControlPoint) Devices() []*upnp.Device {
	return cp.devices.Devices()
}

// Device returns the root device owning udn, which may name an embedded
// device, or nil.
func (cp *ControlPoint) Device(udn string) *upnp.Device {
	if d := cp.devices.Get(udn); d != nil {
		return d
	}
	for _, root := range cp.devices.Devices() {
		for _, child := range root.Embedded() {
			if child.UDN == udn {
				return root
			}
		}
	}
	return nil
}

// CallbackAddr returns the GENA callback listen address, or nil when not
// started.
func (cp *ControlPoint) CallbackAddr() net.Addr {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.callback == nil {
		return nil
	}
	return cp.callback.Addr()
}

// emit dispatches event to every handler on the callback executor.
func (cp *ControlPoint) emit(event Event) {
	cp.mu.RLock()
	handlers := append([]EventHandler(nil), cp.eventHandlers...)
	exec := cp.executors
	cp.mu.RUnlock()

	if len(handlers) == 0 || exec == nil {
		return
	}
	if !exec.Callback.Execute(func() {
		for _, h := range handlers {
			h(event)
		}
	}) {
		cp.logger.Debug("event dropped", "type", event.Type.String())
	}
}

func (cp *ControlPoint) running() (*task.Executors, context.Context, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.state != StateRunning && cp.state != StateStarting {
		return nil, nil, false
	}
	return cp.executors, cp.ctx, true
}

// waitDone waits for done or timeout, whichever comes first.
func waitDone(done <-chan struct{}, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
}
