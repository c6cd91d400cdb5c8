package ssdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/task"
)

// ReasonOtherInterface marks datagrams delivered for a different interface.
const ReasonOtherInterface = "other-interface"

// ReceiverConfig configures a multicast receiver.
type ReceiverConfig struct {
	// Interface to listen on. Nil uses the system default.
	Interface *net.Interface

	// Network is "udp4" (default) or "udp6".
	Network string

	// Port overrides DefaultPort.
	Port int

	// SegmentCheck drops non-byebye datagrams whose source lies outside
	// Prefix.
	SegmentCheck bool

	// Prefix is the local subnet. Zero derives it from Interface.
	Prefix netip.Prefix

	// Filter is the owner predicate. Returning false drops the message.
	Filter func(*Message) bool

	// OnMessage receives every accepted message.
	OnMessage func(*Message)

	// PacketConn replaces the multicast socket. The receiver does not join
	// any group on it and cannot reopen it.
	PacketConn net.PacketConn

	// Backoff configures socket reopen delays.
	Backoff task.BackoffConfig

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures every datagram decision. Nil disables capture.
	ProtocolLogger log.Logger
}

// Receiver owns the SSDP multicast socket for one interface and family and
// runs the receive loop.
type Receiver struct {
	config ReceiverConfig
	logger *slog.Logger
	plog   log.Logger
	connID string
	group  *net.UDPAddr

	localAddr netip.Addr
	prefix    netip.Prefix
	scopeID   string

	loop *task.Loop

	mu   sync.Mutex
	conn net.PacketConn
	p4   *ipv4.PacketConn
	p6   *ipv6.PacketConn
}

// NewReceiver creates a stopped receiver.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	if config.Network == "" {
		config.Network = "udp4"
	}
	if config.Network != "udp4" && config.Network != "udp6" {
		return nil, fmt.Errorf("ssdp: unsupported network %q", config.Network)
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	r := &Receiver{
		config: config,
		logger: config.Logger,
		plog:   log.OrNoop(config.ProtocolLogger),
		connID: uuid.NewString(),
		prefix: config.Prefix,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	if config.Network == "udp6" {
		r.group = &net.UDPAddr{IP: MulticastAddrV6.IP, Port: config.Port}
	} else {
		r.group = &net.UDPAddr{IP: MulticastAddrV4.IP, Port: config.Port}
	}

	if addr, prefix, ok := InterfacePrefix(config.Interface, config.Network); ok {
		r.localAddr = addr
		if !r.prefix.IsValid() {
			r.prefix = prefix
		}
	}
	if config.Interface != nil && config.Network == "udp6" {
		r.scopeID = config.Interface.Name
		r.group.Zone = config.Interface.Name
	}
	if config.SegmentCheck && !r.prefix.IsValid() {
		return nil, ErrNoPrefix
	}

	name := "ssdp-" + config.Network
	if config.Interface != nil {
		name += "-" + config.Interface.Name
	}
	r.loop = task.NewLoop(name, r.run)
	return r, nil
}

// Prefix returns the subnet used by the segment check.
func (r *Receiver) Prefix() netip.Prefix { return r.prefix }

// LocalAddr returns the interface address stamped on accepted messages.
func (r *Receiver) LocalAddr() netip.Addr { return r.localAddr }

// Start opens the socket and runs the receive loop on exec.
func (r *Receiver) Start(exec task.Executor) error {
	if r.loop.Running() {
		return nil
	}
	if err := r.open(); err != nil {
		return err
	}
	if !r.loop.Start(exec) {
		r.closeConn()
		return task.ErrTerminated
	}
	r.logger.Info("SSDP receiver started", "network", r.config.Network, "group", r.group.String(), "prefix", r.prefix.String())
	return nil
}

// Stop cancels the receive loop and closes the socket. It is idempotent.
func (r *Receiver) Stop() {
	r.loop.Stop()
	r.closeConn()
}

// Done is closed when the receive loop has returned.
func (r *Receiver) Done() <-chan struct{} {
	return r.loop.Done()
}

func (r *Receiver) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	if r.config.PacketConn != nil {
		r.conn = r.config.PacketConn
		return nil
	}

	conn, err := net.ListenMulticastUDP(r.config.Network, r.config.Interface, r.group)
	if err != nil {
		return fmt.Errorf("ssdp: listen %s: %w", r.group, err)
	}
	r.conn = conn

	// Control messages tell us the arrival interface. Not every platform
	// supports them, so failures only lose that information.
	if r.config.Network == "udp6" {
		r.p6 = ipv6.NewPacketConn(conn)
		_ = r.p6.SetControlMessage(ipv6.FlagInterface|ipv6.FlagDst, true)
		_ = r.p6.SetMulticastLoopback(true)
	} else {
		r.p4 = ipv4.NewPacketConn(conn)
		_ = r.p4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true)
		_ = r.p4.SetMulticastLoopback(true)
	}
	r.plog.Log(r.socketEvent("", "open", ""))
	return nil
}

func (r *Receiver) closeConn() {
	r.mu.Lock()
	conn := r.conn
	r.conn, r.p4, r.p6 = nil, nil, nil
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		r.plog.Log(r.socketEvent("open", "closed", ""))
	}
}

// read returns one datagram and the arrival interface index (0 if unknown).
func (r *Receiver) read(buf []byte) (int, net.Addr, int, error) {
	r.mu.Lock()
	conn, p4, p6 := r.conn, r.p4, r.p6
	r.mu.Unlock()

	switch {
	case conn == nil:
		return 0, nil, 0, ErrClosed
	case p4 != nil:
		n, cm, src, err := p4.ReadFrom(buf)
		if cm != nil {
			return n, src, cm.IfIndex, err
		}
		return n, src, 0, err
	case p6 != nil:
		n, cm, src, err := p6.ReadFrom(buf)
		if cm != nil {
			return n, src, cm.IfIndex, err
		}
		return n, src, 0, err
	default:
		n, src, err := conn.ReadFrom(buf)
		return n, src, 0, err
	}
}

func (r *Receiver) run(ctx context.Context, ready func()) {
	stop := context.AfterFunc(ctx, r.closeConn)
	defer stop()

	backoff := task.NewBackoffWithConfig(r.config.Backoff)
	buf := make([]byte, MaxDatagramSize)
	ready()

	for ctx.Err() == nil {
		n, src, ifIndex, err := r.read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if !r.recover(ctx, backoff, err) {
				return
			}
			continue
		}
		backoff.Reset()

		if ifIndex != 0 && r.config.Interface != nil && ifIndex != r.config.Interface.Index {
			r.capture(buf[:n], src, nil, false, ReasonOtherInterface)
			continue
		}
		r.HandleDatagram(buf[:n], src, time.Now())
	}
}

// recover replaces a dead socket. It returns false when the loop should exit.
func (r *Receiver) recover(ctx context.Context, backoff *task.Backoff, cause error) bool {
	r.logger.Warn("SSDP socket failed", "network", r.config.Network, "error", cause)
	r.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.connID,
		Layer:        log.LayerSSDP,
		Category:     log.CategoryError,
		LocalAddr:    r.localAddrString(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerSSDP,
			Message: cause.Error(),
			Context: "receive",
		},
	})
	r.closeConn()

	if r.config.PacketConn != nil {
		return false
	}

	err := backoff.Retry(ctx, r.open, func(attempt int, err error) {
		r.logger.Warn("SSDP socket reopen failed", "attempt", attempt, "error", err, "retry_in", backoff.Current())
	})
	if err != nil {
		return false
	}
	r.logger.Info("SSDP socket reopened", "network", r.config.Network, "attempts", backoff.Attempts())
	return true
}

// HandleDatagram runs the acceptance pipeline on one datagram and delivers
// it to OnMessage if it passes. It never panics on bad input and reports
// whether the datagram was accepted.
func (r *Receiver) HandleDatagram(data []byte, src net.Addr, receivedAt time.Time) bool {
	msg, err := Parse(data, receivedAt)
	if err != nil {
		r.logger.Debug("dropping malformed datagram", "src", addrString(src), "error", err)
		r.capture(data, src, nil, false, ReasonMalformed)
		return false
	}

	remote := toAddrPort(src)
	msg.remoteAddr = remote
	msg.localAddr = r.localAddr
	msg.scopeID = r.scopeID

	if r.config.SegmentCheck {
		if err := CheckSegment(r.prefix, msg); err != nil {
			r.logger.Debug("dropping datagram", "src", remote.String(), "prefix", r.prefix.String(), "error", err)
			r.capture(data, src, msg, false, ReasonOutOfSegment)
			return false
		}
	}

	if r.config.Filter != nil && !r.config.Filter(msg) {
		r.capture(data, src, msg, false, ReasonFiltered)
		return false
	}

	if err := CheckNotify(msg); err != nil {
		reason := ReasonNotUPnP
		switch {
		case errors.Is(err, ErrNotNotify):
			reason = ReasonNotNotify
		case errors.Is(err, ErrBadLocation):
			reason = ReasonBadLocation
		}
		r.capture(data, src, msg, false, reason)
		return false
	}

	r.capture(data, src, msg, true, "")
	if r.config.OnMessage != nil {
		r.config.OnMessage(msg)
	}
	return true
}

func (r *Receiver) capture(data []byte, src net.Addr, msg *Message, accepted bool, reason string) {
	raw, truncated := log.CaptureBytes(data)
	dg := &log.DatagramEvent{
		Size:      len(data),
		Accepted:  accepted,
		Reason:    reason,
		Data:      raw,
		Truncated: truncated,
	}

	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSSDP,
		Category:     log.CategoryMessage,
		LocalAddr:    r.localAddrString(),
		RemoteAddr:   addrString(src),
		Datagram:     dg,
	}
	if msg != nil {
		event.UDN = msg.UUID()
		dg.StartLine = msg.StartLine()
		dg.NT = msg.NT()
		dg.NTS = msg.NTS()
		dg.USN = msg.USN()
		dg.ST = msg.ST()
		dg.Location = msg.Header(HeaderLocation)
	}
	r.plog.Log(event)
}

func (r *Receiver) socketEvent(oldState, newState, reason string) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.connID,
		Layer:        log.LayerSSDP,
		Category:     log.CategoryState,
		LocalAddr:    r.localAddrString(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySocket,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

func (r *Receiver) localAddrString() string {
	if !r.localAddr.IsValid() {
		return ""
	}
	return r.localAddr.String()
}

func toAddrPort(src net.Addr) netip.AddrPort {
	switch a := src.(type) {
	case *net.UDPAddr:
		ap := a.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	case nil:
		return netip.AddrPort{}
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.AddrPort{}
		}
		return ap
	}
}

func addrString(src net.Addr) string {
	if src == nil {
		return ""
	}
	return src.String()
}
