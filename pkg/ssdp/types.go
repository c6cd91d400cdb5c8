package ssdp

import (
	"errors"
	"net"
	"time"
)

// Protocol constants.
const (
	// DefaultPort is the SSDP UDP port.
	DefaultPort = 1900

	// DefaultMaxAge is used when Cache-Control is absent or malformed (seconds).
	DefaultMaxAge = 1800

	// ExpiryMargin is added to every derived expiry time.
	ExpiryMargin = 10 * time.Second

	// MaxDatagramSize is the receive buffer size.
	MaxDatagramSize = 8192
)

// Multicast groups.
var (
	MulticastAddrV4 = &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: DefaultPort}
	MulticastAddrV6 = &net.UDPAddr{IP: net.ParseIP("ff02::c"), Port: DefaultPort}
)

// Methods and NOTIFY subtypes.
const (
	MethodNotify  = "NOTIFY"
	MethodSearch  = "M-SEARCH"
	NTSAlive      = "ssdp:alive"
	NTSByeBye     = "ssdp:byebye"
	NTSUpdate     = "ssdp:update"
	ManDiscover   = `"ssdp:discover"`
	TargetAll     = "ssdp:all"
	TargetRoot    = "upnp:rootdevice"
	DefaultServer = "Linux/5 UPnP/1.1 upnp-go/1.0"
)

// Header names.
const (
	HeaderHost         = "HOST"
	HeaderCacheControl = "CACHE-CONTROL"
	HeaderLocation     = "LOCATION"
	HeaderNT           = "NT"
	HeaderNTS          = "NTS"
	HeaderUSN          = "USN"
	HeaderST           = "ST"
	HeaderMAN          = "MAN"
	HeaderMX           = "MX"
	HeaderServer       = "SERVER"
	HeaderExt          = "EXT"
)

// Drop reasons recorded in capture events.
const (
	ReasonMalformed    = "malformed"
	ReasonOutOfSegment = "out-of-segment"
	ReasonFiltered     = "filtered"
	ReasonNotNotify    = "not-notify"
	ReasonNotUPnP      = "not-upnp"
	ReasonBadLocation  = "bad-location"
)

// SSDP errors.
var (
	ErrInvalidMessage = errors.New("invalid SSDP message")
	ErrNotNotify      = errors.New("not a NOTIFY request")
	ErrNotUPnP        = errors.New("missing or unrecognized UPnP headers")
	ErrBadLocation    = errors.New("invalid Location header")
	ErrOutOfSegment   = errors.New("source address outside local segment")
	ErrNoPrefix       = errors.New("segment check enabled but no local prefix known")
	ErrClosed         = errors.New("ssdp socket closed")
)

// Never is the expiry time of pinned messages.
var Never = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
