package log

import (
	"sync"
	"testing"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{ConnectionID: "conn-123"})

	for i, rec := range []*recordingLogger{a, b} {
		if len(rec.events) != 1 {
			t.Fatalf("logger %d: got %d events, want 1", i, len(rec.events))
		}
		if rec.events[0].ConnectionID != "conn-123" {
			t.Errorf("logger %d: ConnectionID = %q", i, rec.events[0].ConnectionID)
		}
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}

	rec := &recordingLogger{}
	if OrNoop(rec) != Logger(rec) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerSSDP.String(), "SSDP"},
		{LayerGENA.String(), "GENA"},
		{LayerRegistry.String(), "REGISTRY"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{StateEntityDevice.String(), "DEVICE"},
		{StateEntitySubscription.String(), "SUBSCRIPTION"},
		{StateEntitySocket.String(), "SOCKET"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
