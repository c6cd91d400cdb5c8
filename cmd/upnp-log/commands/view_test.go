package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ulog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

var testTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func aliveDatagram() log.Event {
	return log.Event{
		Timestamp:    testTime,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerSSDP,
		Category:     log.CategoryMessage,
		LocalAddr:    "192.168.1.10:1900",
		RemoteAddr:   "192.168.1.20:1900",
		UDN:          "uuid:renderer-1",
		Datagram: &log.DatagramEvent{
			Size:      312,
			StartLine: "NOTIFY * HTTP/1.1",
			NT:        "upnp:rootdevice",
			NTS:       "ssdp:alive",
			USN:       "uuid:renderer-1::upnp:rootdevice",
			Location:  "http://192.168.1.20:49152/desc.xml",
			Accepted:  true,
			Data:      []byte{0x4e, 0x4f},
		},
	}
}

func TestFormatDatagramEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, aliveDatagram(), false)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"IN  SSDP ssdp:alive",
		"Remote: 192.168.1.20:1900",
		"UDN: uuid:renderer-1",
		"Size: 312 bytes",
		"Line: NOTIFY * HTTP/1.1",
		"USN: uuid:renderer-1::upnp:rootdevice",
		"Location: http://192.168.1.20:49152/desc.xml",
		"Accepted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Data:") {
		t.Errorf("raw data should be hidden without -raw, got:\n%s", output)
	}
}

func TestFormatDatagramRaw(t *testing.T) {
	event := aliveDatagram()
	event.Datagram.Truncated = true

	var buf bytes.Buffer
	formatEvent(&buf, event, true)
	output := buf.String()

	if !strings.Contains(output, "Data: 4e4f (truncated)") {
		t.Errorf("expected hex data, got:\n%s", output)
	}
}

func TestFormatDroppedDatagram(t *testing.T) {
	event := aliveDatagram()
	event.Datagram.Accepted = false
	event.Datagram.Reason = "segment"

	var buf bytes.Buffer
	formatEvent(&buf, event, false)

	if !strings.Contains(buf.String(), "Dropped: segment") {
		t.Errorf("expected drop reason, got:\n%s", buf.String())
	}
}

func TestFormatSearchResponse(t *testing.T) {
	event := log.Event{
		Timestamp: testTime,
		Layer:     log.LayerSSDP,
		Datagram:  &log.DatagramEvent{ST: "ssdp:all", Accepted: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event, false)

	if !strings.Contains(buf.String(), "SSDP response") {
		t.Errorf("expected response label, got:\n%s", buf.String())
	}
}

func TestFormatNotifyEvent(t *testing.T) {
	event := log.Event{
		Timestamp:  testTime,
		Direction:  log.DirectionIn,
		Layer:      log.LayerGENA,
		Category:   log.CategoryMessage,
		RemoteAddr: "192.168.1.20:40000",
		SID:        "uuid:sub-1",
		Notify:     &log.NotifyEvent{Seq: 7, Properties: 2, Status: 200},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event, false)
	output := buf.String()

	for _, want := range []string{"GENA notify", "SID: uuid:sub-1", "SEQ: 7  Properties: 2", "Status: 200"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Timestamp: testTime,
		Layer:     log.LayerRegistry,
		Category:  log.CategoryState,
		UDN:       "uuid:renderer-1",
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: "ALIVE",
			NewState: "EXPIRED",
			Reason:   "max-age elapsed",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event, false)
	output := buf.String()

	for _, want := range []string{"REGISTRY state", "Entity: DEVICE", "ALIVE -> EXPIRED", "Reason: max-age elapsed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatStateChangeWithoutOldState(t *testing.T) {
	event := log.Event{
		Timestamp:   testTime,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntitySocket, NewState: "OPEN"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event, false)

	if !strings.Contains(buf.String(), "  -> OPEN") {
		t.Errorf("expected new state only, got:\n%s", buf.String())
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Timestamp: testTime,
		Layer:     log.LayerGENA,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerGENA,
			Message: "connection refused",
			Context: "SUBSCRIBE",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event, false)
	output := buf.String()

	for _, want := range []string{"GENA error", "Message: connection refused", "Context: SUBSCRIBE"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestShortenConnID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc12345-6789", "abc12345"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortenConnID(tt.in); got != tt.want {
			t.Errorf("shortenConnID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("GENA"); err != nil || l != log.LayerGENA {
		t.Errorf("ParseLayerFlag(GENA) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("Out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(Out) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("state"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag(state) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunViewFilters(t *testing.T) {
	notify := log.Event{
		Timestamp: testTime.Add(time.Second),
		Layer:     log.LayerGENA,
		SID:       "uuid:sub-1",
		Notify:    &log.NotifyEvent{Seq: 1, Properties: 1, Status: 200},
	}
	path := createTestLogFile(t, []log.Event{aliveDatagram(), notify})

	layer := log.LayerGENA
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "GENA notify") {
		t.Errorf("expected notify event, got:\n%s", output)
	}
	if strings.Contains(output, "SSDP") {
		t.Errorf("SSDP event should be filtered, got:\n%s", output)
	}

	buf.Reset()
	if err := RunView(path, ViewFilter{UDN: "uuid:renderer-1"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if strings.Contains(buf.String(), "GENA") || !strings.Contains(buf.String(), "ssdp:alive") {
		t.Errorf("expected only the datagram, got:\n%s", buf.String())
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.ulog"), ViewFilter{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
