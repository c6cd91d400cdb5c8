// Package transport provides the plain TCP server the event callback
// listener runs on.
//
// The server owns the listener and the set of live connections. Its accept
// loop runs as a task.Loop on a caller-supplied executor, and every accepted
// connection is handed to the configured Handler on the same executor. The
// handler owns the connection's protocol; the server only tracks and closes
// it.
//
//	┌────────────────────────────────┐
//	│   GENA NOTIFY (HTTP/1.1)       │
//	├────────────────────────────────┤
//	│   transport.Server (TCP)       │
//	├────────────────────────────────┤
//	│   IPv4 / IPv6                  │
//	└────────────────────────────────┘
package transport
