package main

import (
	"bytes"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnp-engine/upnp-go/pkg/controlpoint"
	"github.com/upnp-engine/upnp-go/pkg/log"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

const testConfigFile = `
interfaces: eth0, wlan0
ipv6: true
segment_check: true
callback_addr: 0.0.0.0:49200
subscription_timeout: 5m
search: upnp:rootdevice
log_level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upnp-cp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseFlags(t *testing.T, args ...string) (Config, map[string]bool) {
	t.Helper()
	var cfg Config
	fs := flag.NewFlagSet("upnp-cp", flag.ContinueOnError)
	registerFlags(fs, &cfg)
	require.NoError(t, fs.Parse(args))

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return cfg, set
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, testConfigFile)
	flags, set := parseFlags(t, "-config", path)

	cfg, err := loadConfig(path, flags, set)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, []string{"eth0", "wlan0"}, cfg.InterfaceNames())
	assert.Equal(t, []string{"udp4", "udp6"}, cfg.Networks())
	assert.True(t, cfg.SegmentCheck)
	assert.Equal(t, "0.0.0.0:49200", cfg.CallbackAddr)
	assert.Equal(t, 5*time.Minute, cfg.SubscriptionTimeout())
	assert.Equal(t, "upnp:rootdevice", cfg.SearchTarget())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Interactive, "flag default kept for absent key")
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	path := writeConfig(t, testConfigFile)
	flags, set := parseFlags(t, "-config", path, "-log-level", "warn", "-iface", "lo", "-interactive", "-timeout", "1m")

	cfg, err := loadConfig(path, flags, set)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"lo"}, cfg.InterfaceNames())
	assert.True(t, cfg.Interactive)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.True(t, cfg.SegmentCheck, "file value kept when flag not given")
}

func TestLoadConfigErrors(t *testing.T) {
	flags, set := parseFlags(t)

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), flags, set)
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "interfaces: [unclosed"), flags, set)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg, _ := parseFlags(t)

	assert.Empty(t, cfg.InterfaceNames())
	assert.Equal(t, []string{"udp4"}, cfg.Networks())
	assert.Equal(t, 30*time.Minute, cfg.SubscriptionTimeout())
	assert.Equal(t, "ssdp:all", cfg.SearchTarget())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupProtocolLog(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	plog, closeFn, err := setupProtocolLog("", logger, slog.LevelInfo)
	require.NoError(t, err)
	assert.Nil(t, plog)
	closeFn()

	plog, closeFn, err = setupProtocolLog("", logger, slog.LevelDebug)
	require.NoError(t, err)
	assert.IsType(t, &log.SlogAdapter{}, plog)
	closeFn()

	path := filepath.Join(t.TempDir(), "cp.ulog")
	plog, closeFn, err = setupProtocolLog(path, logger, slog.LevelDebug)
	require.NoError(t, err)
	assert.IsType(t, &log.MultiLogger{}, plog)
	plog.Log(log.Event{Timestamp: time.Now(), Layer: log.LayerGENA, SID: "uuid:sub-1"})
	closeFn()

	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()
	event, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "uuid:sub-1", event.SID)

	_, _, err = setupProtocolLog(filepath.Join(t.TempDir(), "missing", "cp.ulog"), logger, slog.LevelInfo)
	assert.Error(t, err)
}

func TestHandleEvent(t *testing.T) {
	var buf bytes.Buffer
	handle := handleEvent(newLogger(&buf, slog.LevelInfo))

	d := upnp.NewDevice("uuid:renderer-1")
	d.FriendlyName = "Living Room"
	handle(controlpoint.Event{Type: controlpoint.EventDeviceAdded, Device: d})
	assert.Contains(t, buf.String(), "event=DEVICE_ADDED")
	assert.Contains(t, buf.String(), "udn=uuid:renderer-1")
	assert.Contains(t, buf.String(), `name="Living Room"`)

	buf.Reset()
	handle(controlpoint.Event{
		Type:       controlpoint.EventPropertyChange,
		Seq:        4,
		Properties: []upnp.Property{{Name: "Volume", Value: "10"}},
	})
	assert.Contains(t, buf.String(), "seq=4")
	assert.Contains(t, buf.String(), "Volume=10")

	buf.Reset()
	handle(controlpoint.Event{Type: controlpoint.EventSubscriptionFailed, Error: errors.New("gone")})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=gone")
}

func TestSwitchWriter(t *testing.T) {
	var first, second bytes.Buffer
	w := &switchWriter{w: &first}

	_, _ = w.Write([]byte("a"))
	w.set(&second)
	_, _ = w.Write([]byte("b"))

	assert.Equal(t, "a", first.String())
	assert.Equal(t, "b", second.String())
}
