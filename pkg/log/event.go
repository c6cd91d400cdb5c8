package log

import (
	"time"
)

// MaxCapturedBytes caps the raw datagram bytes stored in a capture event.
const MaxCapturedBytes = 1024

// Event is one capture record. Exactly one payload field is set.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the socket or TCP connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction of the traffic.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// LocalAddr is the local address the traffic used.
	LocalAddr string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// UDN identifies the device, when known.
	UDN string `cbor:"8,keyasint,omitempty"`

	// SID identifies the subscription, when known.
	SID string `cbor:"9,keyasint,omitempty"`

	Datagram    *DatagramEvent    `cbor:"10,keyasint,omitempty"`
	Notify      *NotifyEvent      `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates traffic flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerSSDP is the multicast discovery layer.
	LayerSSDP Layer = 0
	// LayerGENA is the event subscription and notification layer.
	LayerGENA Layer = 1
	// LayerRegistry covers the device and subscription holders.
	LayerRegistry Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerSSDP:
		return "SSDP"
	case LayerGENA:
		return "GENA"
	case LayerRegistry:
		return "REGISTRY"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a datagram or notification.
	CategoryMessage Category = 0
	// CategoryState is a lifecycle change.
	CategoryState Category = 1
	// CategoryError is an error that was contained.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent summarizes one SSDP datagram.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// StartLine is the request or status line.
	StartLine string `cbor:"2,keyasint,omitempty"`

	NT       string `cbor:"3,keyasint,omitempty"`
	NTS      string `cbor:"4,keyasint,omitempty"`
	USN      string `cbor:"5,keyasint,omitempty"`
	ST       string `cbor:"6,keyasint,omitempty"`
	Location string `cbor:"7,keyasint,omitempty"`

	// Accepted is true when the datagram passed every check.
	Accepted bool `cbor:"8,keyasint"`

	// Reason names the check that dropped the datagram.
	Reason string `cbor:"9,keyasint,omitempty"`

	// Data is the raw datagram, truncated to MaxCapturedBytes.
	Data []byte `cbor:"10,keyasint,omitempty"`

	// Truncated indicates Data was cut.
	Truncated bool `cbor:"11,keyasint,omitempty"`
}

// NotifyEvent summarizes one GENA NOTIFY request and the status returned.
type NotifyEvent struct {
	// Seq is the SEQ header value.
	Seq uint32 `cbor:"1,keyasint"`

	// Properties is the number of changed properties.
	Properties int `cbor:"2,keyasint"`

	// Status is the HTTP status sent back.
	Status int `cbor:"3,keyasint"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityDevice       StateEntity = 0
	StateEntitySubscription StateEntity = 1
	StateEntitySocket       StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityDevice:
		return "DEVICE"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntitySocket:
		return "SOCKET"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error that was contained at a layer boundary.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// CaptureBytes returns data truncated to MaxCapturedBytes and whether it
// was cut.
func CaptureBytes(data []byte) ([]byte, bool) {
	if len(data) <= MaxCapturedBytes {
		out := make([]byte, len(data))
		copy(out, data)
		return out, false
	}
	out := make([]byte, MaxCapturedBytes)
	copy(out, data[:MaxCapturedBytes])
	return out, true
}
