// Command upnp-cp is a UPnP control point.
//
// It listens for SSDP advertisements, keeps a registry of the devices it
// hears about and manages GENA event subscriptions to their services.
//
// Usage:
//
//	upnp-cp [flags]
//
// Flags:
//
//	-config string         Configuration file path (YAML)
//	-iface string          Comma separated interfaces to listen on
//	-ipv6                  Also listen on the IPv6 link-local group
//	-segment-check         Drop advertisements from outside the interface subnet
//	-callback-addr string  GENA callback listen address
//	-callback-host string  Host advertised in CALLBACK URLs
//	-timeout duration      Requested subscription timeout (default 30m)
//	-search string         Search target to send at startup
//	-log-level string      Log level: debug, info, warn, error (default "info")
//	-protocol-log string   Write a capture file readable by upnp-log
//	-interactive           Enable interactive command mode
//	-announce string       Announce a root device with this description URL
//
// Examples:
//
//	# Watch the network and search for everything at startup
//	upnp-cp -search ssdp:all -log-level debug
//
//	# Interactive mode on one interface with a capture file
//	upnp-cp -iface eth0 -interactive -protocol-log cp.ulog
//
//	# Settings from a file, with the log level overridden
//	upnp-cp -config upnp-cp.yaml -log-level warn
//
// Interactive Commands:
//
//	devices                              - List discovered root devices
//	device <udn>                         - Show a device and its services
//	search [target]                      - Send an M-SEARCH
//	subscribe <udn> <service> [timeout]  - Subscribe to a service
//	unsubscribe <sid>                    - Cancel a subscription
//	subs                                 - List active subscriptions
//	status                               - Show control point status
//	quit                                 - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/upnp-engine/upnp-go/cmd/upnp-cp/interactive"
	"github.com/upnp-engine/upnp-go/pkg/controlpoint"
	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/ssdp"
)

var config Config

func init() {
	registerFlags(flag.CommandLine, &config)
}

func main() {
	flag.Parse()

	if config.ConfigFile != "" {
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cfg, err := loadConfig(config.ConfigFile, config, set)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config = cfg
	}

	level, err := parseLevel(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The console needs the control point, and the control point needs its
	// logger, so interactive output is routed through a swappable writer.
	out := &switchWriter{w: os.Stderr}
	logger := newLogger(out, level)

	plog, closeCapture, err := setupProtocolLog(config.ProtocolLog, logger, level)
	if err != nil {
		logger.Error("failed to open protocol log", "path", config.ProtocolLog, "error", err)
		os.Exit(1)
	}
	defer closeCapture()

	cpConfig := controlpoint.DefaultConfig()
	cpConfig.Interfaces = config.InterfaceNames()
	cpConfig.Networks = config.Networks()
	cpConfig.SegmentCheck = config.SegmentCheck
	cpConfig.CallbackAddress = config.CallbackAddr
	cpConfig.CallbackHost = config.CallbackHost
	if config.Timeout > 0 {
		cpConfig.SubscriptionTimeout = config.Timeout
	}
	cpConfig.Logger = logger
	cpConfig.ProtocolLogger = plog

	cp, err := controlpoint.New(cpConfig)
	if err != nil {
		logger.Error("failed to create control point", "error", err)
		os.Exit(1)
	}
	cp.OnEvent(handleEvent(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cp.Start(ctx); err != nil {
		logger.Error("failed to start control point", "error", err)
		os.Exit(1)
	}
	logger.Info("control point running", "state", cp.State().String(), "callback", cp.CallbackAddr().String())

	var announcer *ssdp.Announcer
	if config.Announce != "" {
		announcer, err = startAnnouncer(ctx, config.Announce, logger, plog)
		if err != nil {
			logger.Warn("announcer disabled", "error", err)
		}
	}

	if config.Search != "" {
		go func() {
			msgs, err := cp.Search(ctx, config.Search)
			if err != nil {
				logger.Warn("search failed", "target", config.Search, "error", err)
				return
			}
			logger.Info("search complete", "target", config.Search, "responses", len(msgs))
		}()
	}

	if config.Interactive {
		ic, err := interactive.New(cp, &config)
		if err != nil {
			logger.Error("failed to create interactive console", "error", err)
			os.Exit(1)
		}
		// Log output goes through readline to avoid interfering with input.
		out.set(ic.Stdout())
		go ic.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
		// Cancelled by the interactive quit command.
	}

	logger.Info("shutting down")

	if announcer != nil {
		if err := announcer.ByeBye(); err != nil {
			logger.Warn("byebye failed", "error", err)
		}
		_ = announcer.Close()
	}

	cancel()

	if err := cp.Stop(); err != nil {
		logger.Warn("error stopping control point", "error", err)
	}
}

// setupProtocolLog opens the capture file at path. At debug level captured
// events are also written to logger.
func setupProtocolLog(path string, logger *slog.Logger, level slog.Level) (log.Logger, func(), error) {
	if path == "" {
		if level <= slog.LevelDebug {
			return log.NewSlogAdapter(logger), func() {}, nil
		}
		return nil, func() {}, nil
	}

	file, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		stats := file.Stats()
		if err := file.Close(); err != nil {
			logger.Warn("failed to close protocol log", "error", err)
			return
		}
		logger.Info("protocol log closed", "path", stats.Path, "events", stats.Events, "bytes", stats.Bytes, "dropped", stats.Dropped)
	}
	if level <= slog.LevelDebug {
		return log.NewMultiLogger(file, log.NewSlogAdapter(logger)), closeFn, nil
	}
	return file, closeFn, nil
}

// startAnnouncer advertises a root device at location until ctx is done.
func startAnnouncer(ctx context.Context, location string, logger *slog.Logger, plog log.Logger) (*ssdp.Announcer, error) {
	udn := "uuid:" + uuid.NewString()
	a, err := ssdp.NewAnnouncer(ssdp.AnnouncerConfig{
		NT:             ssdp.TargetRoot,
		USN:            udn + "::" + ssdp.TargetRoot,
		Location:       location,
		Server:         ssdp.DefaultServer,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Alive(); err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info("announcing", "udn", udn, "location", location)

	go func() {
		ticker := time.NewTicker(time.Duration(ssdp.DefaultMaxAge) * time.Second / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.Alive(); err != nil {
					logger.Warn("re-announce failed", "error", err)
				}
			}
		}
	}()
	return a, nil
}

// handleEvent logs control point events.
func handleEvent(logger *slog.Logger) controlpoint.EventHandler {
	return func(event controlpoint.Event) {
		attrs := []any{"event", event.Type.String()}
		if event.Device != nil {
			attrs = append(attrs, "udn", event.Device.UDN)
			if event.Device.FriendlyName != "" {
				attrs = append(attrs, "name", event.Device.FriendlyName)
			}
		}
		if event.Subscription != nil {
			attrs = append(attrs, "sid", event.Subscription.SubscriptionID())
		}

		switch event.Type {
		case controlpoint.EventPropertyChange:
			attrs = append(attrs, "seq", event.Seq)
			for _, p := range event.Properties {
				attrs = append(attrs, p.Name, p.Value)
			}
		case controlpoint.EventSubscriptionRenewed:
			attrs = append(attrs, "timeout", event.Timeout)
		case controlpoint.EventSubscriptionFailed:
			attrs = append(attrs, "error", event.Error)
			logger.Warn("control point event", attrs...)
			return
		}
		logger.Info("control point event", attrs...)
	}
}

// switchWriter forwards to a writer that can be replaced while in use.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
