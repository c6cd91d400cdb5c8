package ssdp

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

// AnnouncerConfig describes the device being announced.
type AnnouncerConfig struct {
	// Target receives the datagrams. Nil uses the IPv4 multicast group.
	Target *net.UDPAddr

	// NT is the notification type, e.g. "upnp:rootdevice".
	NT string

	// USN is the full unique service name.
	USN string

	// Location is the description URL.
	Location string

	Server string

	// MaxAge in seconds. Zero uses DefaultMaxAge.
	MaxAge int

	Logger         *slog.Logger
	ProtocolLogger log.Logger
}

// Announcer sends NOTIFY alive and byebye datagrams for one device.
type Announcer struct {
	config AnnouncerConfig
	conn   *net.UDPConn
	logger *slog.Logger
	plog   log.Logger
	connID string
}

// NewAnnouncer opens an unbound UDP socket for sending.
func NewAnnouncer(config AnnouncerConfig) (*Announcer, error) {
	if config.Target == nil {
		config.Target = MulticastAddrV4
	}
	network := "udp4"
	if config.Target.IP.To4() == nil {
		network = "udp6"
	}
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("ssdp: announcer socket: %w", err)
	}

	a := &Announcer{
		config: config,
		conn:   conn,
		logger: config.Logger,
		plog:   log.OrNoop(config.ProtocolLogger),
		connID: uuid.NewString(),
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a, nil
}

// Alive announces the device.
func (a *Announcer) Alive() error {
	return a.send(NTSAlive)
}

// Update re-announces the device with NTS ssdp:update.
func (a *Announcer) Update() error {
	return a.send(NTSUpdate)
}

// ByeBye withdraws the device.
func (a *Announcer) ByeBye() error {
	return a.send(NTSByeBye)
}

// Close releases the socket.
func (a *Announcer) Close() error {
	return a.conn.Close()
}

func (a *Announcer) send(nts string) error {
	msg := NewNotify(NotifyParams{
		Host:     a.config.Target.String(),
		NT:       a.config.NT,
		NTS:      nts,
		USN:      a.config.USN,
		Location: a.config.Location,
		Server:   a.config.Server,
		MaxAge:   a.config.MaxAge,
	})
	data := msg.Bytes()

	_, err := a.conn.WriteToUDP(data, a.config.Target)

	raw, truncated := log.CaptureBytes(data)
	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: a.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerSSDP,
		Category:     log.CategoryMessage,
		LocalAddr:    a.conn.LocalAddr().String(),
		RemoteAddr:   a.config.Target.String(),
		UDN:          msg.UUID(),
		Datagram: &log.DatagramEvent{
			Size:      len(data),
			StartLine: msg.StartLine(),
			NT:        msg.NT(),
			NTS:       nts,
			USN:       msg.USN(),
			Location:  msg.Header(HeaderLocation),
			Accepted:  err == nil,
			Data:      raw,
			Truncated: truncated,
		},
	}
	if err != nil {
		event.Datagram.Reason = err.Error()
	}
	a.plog.Log(event)

	if err != nil {
		return fmt.Errorf("ssdp: send %s: %w", nts, err)
	}
	a.logger.Debug("NOTIFY sent", "nts", nts, "usn", a.config.USN, "target", a.config.Target.String())
	return nil
}
