package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ulog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ulog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerSSDP,
		Category:     CategoryMessage,
		RemoteAddr:   "192.168.1.20:1900",
		Datagram: &DatagramEvent{
			Size:      120,
			StartLine: "NOTIFY * HTTP/1.1",
			NTS:       "ssdp:alive",
			Accepted:  true,
		},
	}

	logger.Log(event)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.ConnectionID != event.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, event.ConnectionID)
	}
	if decoded.Datagram == nil {
		t.Fatal("Datagram is nil")
	}
	if decoded.Datagram.NTS != "ssdp:alive" || !decoded.Datagram.Accepted {
		t.Errorf("Datagram: got %+v", decoded.Datagram)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, event.Timestamp)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ulog")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), Layer: LayerGENA, Notify: &NotifyEvent{Seq: uint32(i)}})
		logger.Close()
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var seqs []uint32
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		seqs = append(seqs, ev.Notify.Seq)
	}
	if len(seqs) != 2 || seqs[0] != 0 || seqs[1] != 1 {
		t.Errorf("got seqs %v, want [0 1]", seqs)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ulog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(Event{Timestamp: time.Now(), Layer: LayerRegistry, Category: CategoryState})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		count++
	}
	if count != 100 {
		t.Errorf("got %d events, want 100", count)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "test.ulog"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Logging after close is silently ignored.
	logger.Log(Event{Timestamp: time.Now()})
}

func TestFileLoggerStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ulog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(Event{Timestamp: time.Now(), Layer: LayerSSDP, UDN: "uuid:tv-1"})
	logger.Log(Event{Timestamp: time.Now(), Layer: LayerGENA, SID: "uuid:sub-1"})
	stats := logger.Stats()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if stats.Path != path || stats.Events != 2 || stats.Dropped != 0 {
		t.Errorf("Stats: got %+v", stats)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if stats.Bytes != info.Size() {
		t.Errorf("Bytes: got %d, file size %d", stats.Bytes, info.Size())
	}
}

func TestCaptureBytes(t *testing.T) {
	small := []byte("NOTIFY * HTTP/1.1\r\n\r\n")
	out, truncated := CaptureBytes(small)
	if truncated || string(out) != string(small) {
		t.Errorf("small datagram: got %q truncated=%v", out, truncated)
	}

	big := make([]byte, MaxCapturedBytes+10)
	out, truncated = CaptureBytes(big)
	if !truncated || len(out) != MaxCapturedBytes {
		t.Errorf("big datagram: got len %d truncated=%v", len(out), truncated)
	}
}
