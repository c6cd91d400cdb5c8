package gena

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/task"
	"github.com/upnp-engine/upnp-go/pkg/transport"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// Callback server defaults.
const (
	// DefaultCallbackPath is the path advertised in CALLBACK headers.
	DefaultCallbackPath = "/upnp/event"

	// DefaultMaxBodySize caps an event body.
	DefaultMaxBodySize = 256 << 10
)

// Listener receives the properties of one accepted NOTIFY. Returning false
// answers 412, e.g. for an unknown SID.
type Listener func(sid string, seq uint32, props []upnp.Property) bool

// CallbackConfig configures a CallbackServer.
type CallbackConfig struct {
	// Address to listen on. Empty picks an ephemeral port on all interfaces.
	Address string

	// Path is the callback path. Empty uses DefaultCallbackPath.
	Path string

	// Listener handles accepted notifications.
	Listener Listener

	// ReadTimeout bounds reading one request.
	ReadTimeout time.Duration

	// MaxBodySize caps the request body. Zero uses DefaultMaxBodySize.
	MaxBodySize int64

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures every notification and its status (optional).
	ProtocolLogger log.Logger
}

// CallbackServer receives GENA event notifications. It delegates connection
// handling to a transport.Server.
type CallbackServer struct {
	config CallbackConfig
	server *transport.Server
	logger *slog.Logger
	plog   log.Logger

	mu       sync.RWMutex
	listener Listener
}

// NewCallbackServer creates a stopped callback server.
func NewCallbackServer(config CallbackConfig) (*CallbackServer, error) {
	if config.Path == "" {
		config.Path = DefaultCallbackPath
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	c := &CallbackServer{
		config:   config,
		logger:   config.Logger,
		plog:     log.OrNoop(config.ProtocolLogger),
		listener: config.Listener,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	server, err := transport.NewServer(transport.ServerConfig{
		Address:        config.Address,
		Handler:        c.serveConn,
		ReadTimeout:    config.ReadTimeout,
		Layer:          log.LayerGENA,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	if err != nil {
		return nil, err
	}
	c.server = server
	return c, nil
}

// SetListener replaces the notification listener.
func (c *CallbackServer) SetListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// Start listens and serves on exec.
func (c *CallbackServer) Start(exec task.Executor) error {
	return c.server.Start(exec)
}

// Stop closes the listener and live connections. It is idempotent.
func (c *CallbackServer) Stop() error {
	return c.server.Stop()
}

// Addr returns the listen address.
func (c *CallbackServer) Addr() net.Addr {
	return c.server.Addr()
}

// URL returns the callback URL as seen from host, the local address a
// publisher reaches us on.
func (c *CallbackServer) URL(host string) string {
	port := "0"
	if tcp, ok := c.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(tcp.Port)
	}
	return "http://" + net.JoinHostPort(host, port) + c.config.Path
}

func (c *CallbackServer) serveConn(conn *transport.ServerConn) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		c.logger.Debug("unreadable event request", "remote", conn.RemoteAddr().String(), "error", err)
		writeStatus(conn, http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	status, sid, seq, count := c.HandleRequest(req)
	writeStatus(conn, status)

	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ConnID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerGENA,
		Category:     log.CategoryMessage,
		LocalAddr:    conn.LocalAddr().String(),
		RemoteAddr:   conn.RemoteAddr().String(),
		SID:          sid,
		Notify: &log.NotifyEvent{
			Seq:        seq,
			Properties: count,
			Status:     status,
		},
	})
}

// HandleRequest validates one NOTIFY request and invokes the listener. It
// returns the status to send, the SID and SEQ seen, and the number of
// properties parsed.
func (c *CallbackServer) HandleRequest(req *http.Request) (status int, sid string, seq uint32, count int) {
	nt := strings.TrimSpace(req.Header.Get(HeaderNT))
	nts := strings.TrimSpace(req.Header.Get(HeaderNTS))
	if req.Method != MethodNotify || nt == "" || nts == "" {
		return http.StatusBadRequest, "", 0, 0
	}

	sid = strings.TrimSpace(req.Header.Get(HeaderSID))
	if sid == "" || nt != NTEvent || nts != NTSPropChange {
		return http.StatusPreconditionFailed, sid, 0, 0
	}

	seq64, err := strconv.ParseUint(strings.TrimSpace(req.Header.Get(HeaderSEQ)), 10, 32)
	if err != nil {
		c.logger.Debug("invalid SEQ", "sid", sid, "seq", req.Header.Get(HeaderSEQ))
		return http.StatusPreconditionFailed, sid, 0, 0
	}
	seq = uint32(seq64)

	body, err := io.ReadAll(io.LimitReader(req.Body, c.config.MaxBodySize+1))
	if err != nil || int64(len(body)) > c.config.MaxBodySize {
		return http.StatusPreconditionFailed, sid, seq, 0
	}
	props := ParsePropertySet(body)
	if len(props) == 0 {
		return http.StatusPreconditionFailed, sid, seq, 0
	}

	c.mu.RLock()
	listener := c.listener
	c.mu.RUnlock()

	if listener == nil || !listener(sid, seq, props) {
		return http.StatusPreconditionFailed, sid, seq, len(props)
	}
	return http.StatusOK, sid, seq, len(props)
}

// writeStatus sends a body-less response. All statuses share the same
// headers.
func writeStatus(w io.Writer, status int) {
	_, _ = fmt.Fprintf(w, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", status, http.StatusText(status))
}
