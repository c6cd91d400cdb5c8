package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerSSDP.String(), "SSDP"},
		{LayerGENA.String(), "GENA"},
		{LayerRegistry.String(), "REGISTRY"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{StateEntityDevice.String(), "DEVICE"},
		{StateEntitySubscription.String(), "SUBSCRIPTION"},
		{StateEntitySocket.String(), "SOCKET"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}

	m := NewMultiLogger()
	if OrNoop(m) != Logger(m) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}

	// The zero value must accept every payload kind.
	var noop NoopLogger
	noop.Log(Event{Datagram: &DatagramEvent{Size: 1}})
	noop.Log(Event{Notify: &NotifyEvent{Seq: 1}})
	noop.Log(Event{StateChange: &StateChangeEvent{NewState: "added"}})
	noop.Log(Event{Error: &ErrorEventData{Message: "boom"}})
}

func TestEventUsesIntegerKeys(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Layer:     LayerRegistry,
		Category:  CategoryState,
		UDN:       "uuid:renderer-1",
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDevice,
			NewState: "expired",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var raw map[any]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for k := range raw {
		if _, ok := k.(uint64); !ok {
			t.Errorf("key %v (%T) is not an integer", k, k)
		}
	}
	if raw[uint64(8)] != "uuid:renderer-1" {
		t.Errorf("UDN key: got %v", raw[uint64(8)])
	}
	if _, ok := raw[uint64(10)]; ok {
		t.Error("empty Datagram payload should be omitted")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp lost precision: got %v", decoded.Timestamp)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := range 3 {
		if err := enc.Encode(Event{Layer: LayerGENA, Notify: &NotifyEvent{Seq: uint32(i), Status: 200}}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i := range 3 {
		var event Event
		if err := dec.Decode(&event); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if event.Notify == nil || event.Notify.Seq != uint32(i) {
			t.Errorf("event %d: got %+v", i, event.Notify)
		}
	}
}
