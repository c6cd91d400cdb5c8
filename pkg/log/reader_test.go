package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func writeCapture(t *testing.T, events ...Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.ulog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, ev := range events {
		logger.Log(ev)
	}
	logger.Close()
	return path
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()

	r, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, ev)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	path := writeCapture(t,
		Event{Timestamp: base, Layer: LayerSSDP, Category: CategoryMessage, UDN: "uuid:a"},
		Event{Timestamp: base.Add(time.Second), Layer: LayerGENA, Category: CategoryMessage, SID: "uuid:sub-1"},
		Event{Timestamp: base.Add(2 * time.Second), Layer: LayerRegistry, Category: CategoryState, UDN: "uuid:a"},
		Event{Timestamp: base.Add(3 * time.Second), Layer: LayerSSDP, Category: CategoryError, Direction: DirectionOut},
	)

	ssdp := LayerSSDP
	state := CategoryState
	out := DirectionOut
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"layer", Filter{Layer: &ssdp}, 2},
		{"category", Filter{Category: &state}, 1},
		{"direction", Filter{Direction: &out}, 1},
		{"udn", Filter{UDN: "uuid:a"}, 2},
		{"sid", Filter{SID: "uuid:sub-1"}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{Layer: &ssdp, UDN: "uuid:a"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readAll(t, path, tt.filter)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.ulog")); err == nil {
		t.Error("expected error for missing file")
	}
}
