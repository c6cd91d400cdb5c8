package transport

import (
	"net"

	"github.com/upnp-engine/upnp-go/pkg/task"
)

// ServerConnection represents a server-side connection to a client.
// Implemented by ServerConn.
type ServerConnection interface {
	net.Conn

	// ConnID returns the unique connection identifier.
	ConnID() string
}

// TransportServer represents a TCP server.
// Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections on exec.
	Start(exec task.Executor) error

	// Stop closes the listener and every live connection.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// Compile-time interface satisfaction checks.
var (
	_ ServerConnection = (*ServerConn)(nil)
	_ TransportServer  = (*Server)(nil)
)
