// Package log provides protocol capture for the control point.
//
// This package defines the Logger interface and Event types for recording
// what happened on the wire and in the registries: SSDP datagrams that were
// accepted or dropped, GENA event notifications and the status they got, and
// device and subscription lifecycle changes. It is separate from operational
// logging (slog); capture produces a machine-readable trace for debugging.
//
// # Basic Usage
//
//	// For development: print capture events through slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write a CBOR capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/upnp/cp.ulog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys. The
// upnp-log command views and summarizes them.
package log
