package controlpoint

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/description"
	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/ssdp"
	"github.com/upnp-engine/upnp-go/pkg/subscription"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// Control point errors.
var (
	ErrNotStarted     = errors.New("control point not started")
	ErrAlreadyStarted = errors.New("control point already started")
	ErrNotSubscribed  = errors.New("not subscribed")
	ErrNoEventURL     = errors.New("service has no eventSubURL")
	ErrNoInterfaces   = errors.New("no multicast interface available")
)

// State is the control point lifecycle state.
type State uint8

const (
	// StateIdle - created but not started.
	StateIdle State = iota

	// StateStarting - sockets and loops are being opened.
	StateStarting

	// StateRunning - discovering and accepting events.
	StateRunning

	// StateStopping - shutting down.
	StateStopping

	// StateStopped - stopped; Start may be called again.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Searcher performs an active M-SEARCH. *ssdp.Searcher implements it.
type Searcher interface {
	Search(ctx context.Context, st string, wait time.Duration) ([]*ssdp.Message, error)
}

// Config configures a ControlPoint.
type Config struct {
	// Interfaces limits discovery to the named interfaces. Empty uses every
	// interface that is up, multicast capable and not loopback.
	Interfaces []string

	// Networks lists the address families to listen on ("udp4", "udp6").
	// Empty means udp4 only.
	Networks []string

	// Port is the SSDP port. Zero uses ssdp.DefaultPort.
	Port int

	// DisableSSDP skips opening multicast receivers. Messages can still be
	// fed with HandleMessage or Search.
	DisableSSDP bool

	// SegmentCheck drops advertisements from outside the interface subnet.
	SegmentCheck bool

	// Filter is an extra predicate applied to every NOTIFY (optional).
	Filter func(*ssdp.Message) bool

	// CallbackAddress is the GENA callback listen address. Empty picks an
	// ephemeral port on all interfaces.
	CallbackAddress string

	// CallbackHost overrides the host advertised in CALLBACK URLs. Empty uses
	// the local address the device was discovered on.
	CallbackHost string

	// SubscriptionTimeout is the timeout requested by Subscribe when the
	// caller passes zero.
	SubscriptionTimeout time.Duration

	// DeviceMargin is added to a device's expiry before the registry wakes.
	DeviceMargin time.Duration

	// Subscription configures the subscription registry.
	Subscription subscription.Config

	// FetchTimeout bounds one description download.
	FetchTimeout time.Duration

	// SearchWait is the MX value of M-SEARCH requests.
	SearchWait time.Duration

	// IOPoolSize caps the description fetch pool. Zero uses the default.
	IOPoolSize int

	// Fetcher downloads descriptions. Nil uses an HTTP fetcher.
	Fetcher description.Fetcher

	// Searcher performs M-SEARCH. Nil uses ssdp.Searcher.
	Searcher Searcher

	// Logger is the optional logger for operational messages.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures SSDP, GENA and registry events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Networks:            []string{"udp4"},
		Port:                ssdp.DefaultPort,
		SubscriptionTimeout: subscription.DefaultTimeout,
		DeviceMargin:        ssdp.ExpiryMargin,
		Subscription:        subscription.DefaultConfig(),
		FetchTimeout:        description.DefaultTimeout,
		SearchWait:          3 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if len(c.Networks) == 0 {
		c.Networks = d.Networks
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.SubscriptionTimeout <= 0 {
		c.SubscriptionTimeout = d.SubscriptionTimeout
	}
	if c.DeviceMargin <= 0 {
		c.DeviceMargin = d.DeviceMargin
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.SearchWait <= 0 {
		c.SearchWait = d.SearchWait
	}
	if c.Subscription.Logger == nil {
		c.Subscription.Logger = c.Logger
	}
	if c.Subscription.ProtocolLogger == nil {
		c.Subscription.ProtocolLogger = c.ProtocolLogger
	}
}

// EventType identifies a control point event.
type EventType uint8

const (
	// EventDeviceAdded - a new root device was registered.
	EventDeviceAdded EventType = iota

	// EventDeviceUpdated - a known device re-advertised itself.
	EventDeviceUpdated

	// EventDeviceRemoved - a device said byebye.
	EventDeviceRemoved

	// EventDeviceExpired - a device stopped advertising.
	EventDeviceExpired

	// EventSubscriptionRenewed - a subscription was renewed.
	EventSubscriptionRenewed

	// EventSubscriptionExpired - a subscription lapsed without renewal.
	EventSubscriptionExpired

	// EventSubscriptionFailed - renewing a subscription failed; it is gone.
	EventSubscriptionFailed

	// EventPropertyChange - a publisher sent changed state variables.
	EventPropertyChange
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventDeviceAdded:
		return "DEVICE_ADDED"
	case EventDeviceUpdated:
		return "DEVICE_UPDATED"
	case EventDeviceRemoved:
		return "DEVICE_REMOVED"
	case EventDeviceExpired:
		return "DEVICE_EXPIRED"
	case EventSubscriptionRenewed:
		return "SUBSCRIPTION_RENEWED"
	case EventSubscriptionExpired:
		return "SUBSCRIPTION_EXPIRED"
	case EventSubscriptionFailed:
		return "SUBSCRIPTION_FAILED"
	case EventPropertyChange:
		return "PROPERTY_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to OnEvent handlers.
type Event struct {
	// Type is the event type.
	Type EventType

	// Device is the root device (device events).
	Device *upnp.Device

	// Subscription is set for subscription and property events.
	Subscription *Subscription

	// Seq is the event sequence number (property events).
	Seq uint32

	// Properties are the changed state variables (property events).
	Properties []upnp.Property

	// Timeout is the granted timeout (renewal events).
	Timeout time.Duration

	// Error is set if the event reports a failure.
	Error error
}

// EventHandler handles control point events.
type EventHandler func(Event)
