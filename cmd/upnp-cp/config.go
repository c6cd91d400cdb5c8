package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the control point configuration. Values read from the
// -config file are overridden by flags given on the command line.
type Config struct {
	ConfigFile string `yaml:"-"`

	// Interfaces is a comma separated list of interface names.
	Interfaces   string        `yaml:"interfaces"`
	IPv6         bool          `yaml:"ipv6"`
	SegmentCheck bool          `yaml:"segment_check"`
	CallbackAddr string        `yaml:"callback_addr"`
	CallbackHost string        `yaml:"callback_host"`
	Timeout      time.Duration `yaml:"subscription_timeout"`

	// Search is the search target sent once at startup. Empty disables it.
	Search string `yaml:"search"`

	LogLevel    string `yaml:"log_level"`
	ProtocolLog string `yaml:"protocol_log"`
	Interactive bool   `yaml:"interactive"`

	// Announce is a description URL advertised as a root device, for
	// testing against a second control point.
	Announce string `yaml:"announce"`
}

// InterfaceNames splits Interfaces.
func (c *Config) InterfaceNames() []string {
	var names []string
	for _, name := range strings.Split(c.Interfaces, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Networks returns the address families to listen on.
func (c *Config) Networks() []string {
	if c.IPv6 {
		return []string{"udp4", "udp6"}
	}
	return []string{"udp4"}
}

// SubscriptionTimeout implements interactive.Settings.
func (c *Config) SubscriptionTimeout() time.Duration {
	return c.Timeout
}

// SearchTarget implements interactive.Settings.
func (c *Config) SearchTarget() string {
	if c.Search == "" {
		return "ssdp:all"
	}
	return c.Search
}

func registerFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.ConfigFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&c.Interfaces, "iface", "", "Comma separated interfaces to listen on (default: all multicast interfaces)")
	fs.BoolVar(&c.IPv6, "ipv6", false, "Also listen on the IPv6 link-local group")
	fs.BoolVar(&c.SegmentCheck, "segment-check", false, "Drop advertisements from outside the interface subnet")
	fs.StringVar(&c.CallbackAddr, "callback-addr", "", "GENA callback listen address (default: ephemeral port)")
	fs.StringVar(&c.CallbackHost, "callback-host", "", "Host advertised in CALLBACK URLs (default: discovery address)")
	fs.DurationVar(&c.Timeout, "timeout", 30*time.Minute, "Requested subscription timeout")
	fs.StringVar(&c.Search, "search", "", "Search target to send at startup (e.g. ssdp:all)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&c.ProtocolLog, "protocol-log", "", "Write a capture file readable by upnp-log")
	fs.BoolVar(&c.Interactive, "interactive", false, "Enable interactive command mode")
	fs.StringVar(&c.Announce, "announce", "", "Announce a root device with this description URL")
}

// loadConfig reads path and applies the flags in set from flags on top.
func loadConfig(path string, flags Config, set map[string]bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flags, fmt.Errorf("read config: %w", err)
	}

	// Flag defaults apply to keys the file leaves out.
	cfg := flags
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return flags, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigFile = path

	for name := range set {
		switch name {
		case "iface":
			cfg.Interfaces = flags.Interfaces
		case "ipv6":
			cfg.IPv6 = flags.IPv6
		case "segment-check":
			cfg.SegmentCheck = flags.SegmentCheck
		case "callback-addr":
			cfg.CallbackAddr = flags.CallbackAddr
		case "callback-host":
			cfg.CallbackHost = flags.CallbackHost
		case "timeout":
			cfg.Timeout = flags.Timeout
		case "search":
			cfg.Search = flags.Search
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "protocol-log":
			cfg.ProtocolLog = flags.ProtocolLog
		case "interactive":
			cfg.Interactive = flags.Interactive
		case "announce":
			cfg.Announce = flags.Announce
		}
	}
	return cfg, nil
}

// parseLevel maps a -log-level value to a slog level.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
