package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/task"
)

// Server errors.
var (
	ErrNoHandler      = errors.New("handler is required")
	ErrAlreadyRunning = errors.New("server already running")
)

// DefaultReadTimeout bounds how long a handler may wait for request data.
const DefaultReadTimeout = 30 * time.Second

// acceptRetryDelay is the pause after a transient accept error.
const acceptRetryDelay = 50 * time.Millisecond

// ServerConfig configures a TCP server.
type ServerConfig struct {
	// Address to listen on (e.g., ":0" or "192.168.1.10:8058").
	Address string

	// Handler serves one connection. The server closes the connection when
	// the handler returns.
	Handler func(conn *ServerConn)

	// ReadTimeout is applied as the connection deadline before Handler runs.
	ReadTimeout time.Duration

	// Layer tags captured connection events.
	Layer log.Layer

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures connection state changes (optional).
	ProtocolLogger log.Logger
}

// Server accepts TCP connections and dispatches them to a handler.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	plog     log.Logger
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	exec    task.Executor
	loop    *task.Loop
	wg      sync.WaitGroup
}

// NewServer creates a stopped server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Address == "" {
		config.Address = ":0"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}

	s := &Server{
		config: config,
		logger: config.Logger,
		plog:   log.OrNoop(config.ProtocolLogger),
		conns:  make(map[*ServerConn]struct{}),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.loop = task.NewLoop("tcp-accept", s.acceptLoop)
	return s, nil
}

// Start listens and runs the accept loop on exec. Accepted connections are
// handled on exec as well.
func (s *Server) Start(exec task.Executor) error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.exec = exec
	s.running.Store(true)

	if !s.loop.Start(exec) {
		s.running.Store(false)
		listener.Close()
		return task.ErrTerminated
	}
	s.logger.Info("TCP server listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes the listener and all live connections, then waits for the
// handlers to return. It is idempotent.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.loop.Stop()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	<-s.loop.Done()
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context, ready func()) {
	listener := s.listener
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	ready()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		sconn := &ServerConn{Conn: conn, connID: uuid.New().String()}
		if !s.track(sconn) {
			conn.Close()
			return
		}

		if !s.exec.Execute(func() { s.handleConnection(sconn) }) {
			s.logger.Warn("connection rejected, executor unavailable", "remote", conn.RemoteAddr().String())
			s.untrack(sconn)
			sconn.Close()
			s.wg.Done()
		}
	}
}

// track registers conn and counts its handler unless the server is
// stopping. Stop flips running before taking connsMu, so every Add made here
// happens before its Wait.
func (s *Server) track(conn *ServerConn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *ServerConn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

// handleConnection runs the handler for a single connection.
func (s *Server) handleConnection(conn *ServerConn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	s.logState(conn, "", "CONNECTED")
	_ = conn.SetDeadline(time.Now().Add(s.config.ReadTimeout))

	s.config.Handler(conn)

	s.logState(conn, "CONNECTED", "DISCONNECTED")
}

func (s *Server) logState(conn *ServerConn, oldState, newState string) {
	s.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.connID,
		Layer:        s.config.Layer,
		Category:     log.CategoryState,
		LocalAddr:    conn.LocalAddr().String(),
		RemoteAddr:   conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySocket,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents one accepted connection.
type ServerConn struct {
	net.Conn

	connID    string
	closeOnce sync.Once
	closeErr  error
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Close closes the connection once.
func (c *ServerConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
