package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func filterFixture(t *testing.T) string {
	t.Helper()
	first := aliveDatagram()
	second := log.Event{
		Timestamp: testTime.Add(time.Minute),
		Direction: log.DirectionIn,
		Layer:     log.LayerGENA,
		SID:       "uuid:sub-1",
		Notify:    &log.NotifyEvent{Seq: 0, Properties: 1, Status: 200},
	}
	third := log.Event{
		Timestamp: testTime.Add(2 * time.Minute),
		Direction: log.DirectionOut,
		Layer:     log.LayerGENA,
		Category:  log.CategoryError,
		SID:       "uuid:sub-2",
		Error:     &log.ErrorEventData{Layer: log.LayerGENA, Message: "timeout"},
	}
	return createTestLogFile(t, []log.Event{first, second, third})
}

func TestFilterBySID(t *testing.T) {
	path := filterFixture(t)
	out := filepath.Join(t.TempDir(), "filtered.ulog")

	n, err := RunFilter(path, FilterOptions{Output: out, SID: "uuid:sub-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event written, got %d", n)
	}

	events := readAll(t, out)
	if len(events) != 1 || events[0].SID != "uuid:sub-1" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestFilterByLayerAndDirection(t *testing.T) {
	path := filterFixture(t)
	out := filepath.Join(t.TempDir(), "filtered.ulog")

	n, err := RunFilter(path, FilterOptions{Output: out, Layer: "gena", Direction: "out"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event written, got %d", n)
	}
	if events := readAll(t, out); events[0].Error == nil {
		t.Errorf("expected the error event, got %+v", events[0])
	}
}

func TestFilterByTimeRange(t *testing.T) {
	path := filterFixture(t)
	out := filepath.Join(t.TempDir(), "filtered.ulog")

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: testTime.Add(30 * time.Second).Format(time.RFC3339),
		TimeEnd:   testTime.Add(90 * time.Second).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event in range, got %d", n)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := filterFixture(t)
	out := filepath.Join(t.TempDir(), "filtered.ulog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "wire"},
		{Output: out, Direction: "up"},
		{Output: out, Category: "snapshot"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
