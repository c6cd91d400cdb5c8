package log

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends capture events to a file in CBOR format.
// It is safe for concurrent use.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	counter countingWriter
	encoder *cbor.Encoder
	events  int
	dropped int
	closed  bool
}

// FileStats summarizes what a FileLogger has written since it was opened.
type FileStats struct {
	Path    string
	Events  int
	Bytes   int64
	Dropped int
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{path: path, file: f}
	l.counter.w = f
	l.encoder = NewEncoder(&l.counter)
	return l, nil
}

// Log writes an event. A failed write only bumps the dropped count; capture
// must not disrupt the engine.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.events++
}

// Stats returns the counters for this logger.
func (l *FileLogger) Stats() FileStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return FileStats{
		Path:    l.path,
		Events:  l.events,
		Bytes:   l.counter.n,
		Dropped: l.dropped,
	}
}

// Close closes the file. Later Log calls are ignored. Close is idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ Logger = (*FileLogger)(nil)
