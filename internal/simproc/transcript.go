package simproc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// transcriptBufferSize is the ring buffer capacity (256 records).
	transcriptBufferSize = 256

	// transcriptFlushInterval is how often the background goroutine flushes to disk.
	transcriptFlushInterval = 100 * time.Millisecond

	// transcriptFlushThresholdPct is the fill percentage that triggers an immediate flush.
	transcriptFlushThresholdPct = 75
)

// transcriptRecord is one JSONL line of a run transcript.
type transcriptRecord struct {
	Timestamp time.Time  `json:"ts"`
	Stream    StreamKind `json:"stream"`
	Line      string     `json:"line"`
}

// TranscriptWriter appends simulation output to a JSONL file through a ring
// buffer, decoupling the stream readers from disk I/O. A background goroutine
// flushes every 100ms; a buffer at 75% capacity flushes immediately. Write
// errors are tracked via atomic counters instead of interrupting the run.
type TranscriptWriter struct {
	path string
	file *os.File

	buffer         [][]byte
	bufferSize     int
	flushThreshold int
	flushInterval  time.Duration

	mu sync.Mutex

	writeErrors atomic.Int64
	lastError   atomic.Value

	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewTranscriptWriter opens (or creates) the transcript file at path and
// starts the background flush goroutine. Parent directories are created as
// needed.
func NewTranscriptWriter(path string) (*TranscriptWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G302 G304 -- operator-owned transcript under the state dir
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	return newTranscriptWriterWithConfig(path, file, transcriptBufferSize, transcriptFlushInterval), nil
}

func newTranscriptWriterWithConfig(path string, file *os.File, bufferSize int, flushInterval time.Duration) *TranscriptWriter {
	if bufferSize <= 0 {
		bufferSize = transcriptBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = transcriptFlushInterval
	}

	w := &TranscriptWriter{
		path:           path,
		file:           file,
		buffer:         make([][]byte, 0, bufferSize),
		bufferSize:     bufferSize,
		flushThreshold: (bufferSize * transcriptFlushThresholdPct) / 100,
		flushInterval:  flushInterval,
		done:           make(chan struct{}),
	}

	w.wg.Add(1)
	go w.flushLoop()

	return w
}

// Path returns the transcript file location.
func (w *TranscriptWriter) Path() string {
	return w.path
}

// Record appends one output line to the transcript. If the buffer reaches
// its flush threshold, an immediate flush is triggered. Thread-safe.
func (w *TranscriptWriter) Record(stream StreamKind, line string) error {
	data, err := json.Marshal(transcriptRecord{
		Timestamp: time.Now().UTC(),
		Stream:    stream,
		Line:      line,
	})
	if err != nil {
		return fmt.Errorf("failed to encode transcript record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}

	w.buffer = append(w.buffer, data)

	if len(w.buffer) >= w.flushThreshold {
		return w.flushLocked()
	}
	return nil
}

// Flush writes all buffered records to disk. Thread-safe.
func (w *TranscriptWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	return w.flushLocked()
}

// flushLocked writes all buffered records to disk. Caller must hold w.mu.
func (w *TranscriptWriter) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}

	var writeErr error
	for _, data := range w.buffer {
		if _, err := w.file.Write(data); err != nil {
			writeErr = err
			w.writeErrors.Add(1)
			w.lastError.Store(err)
			// Keep writing the remaining records.
		}
	}

	w.buffer = w.buffer[:0]
	return writeErr
}

// flushLoop is the background goroutine that periodically flushes the buffer.
func (w *TranscriptWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			_ = w.Flush() // Errors are tracked via atomic counters.
		}
	}
}

// Close stops the background goroutine, performs a final flush, and closes
// the file. After Close returns, no more records are accepted.
func (w *TranscriptWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return os.ErrClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	flushErr := w.flushLocked()
	w.mu.Unlock()

	closeErr := w.file.Close()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// ErrorCount returns the total number of write errors encountered.
func (w *TranscriptWriter) ErrorCount() int64 {
	return w.writeErrors.Load()
}

// LastError returns the most recent write error, or nil if none occurred.
func (w *TranscriptWriter) LastError() error {
	if err := w.lastError.Load(); err != nil {
		return err.(error)
	}
	return nil
}

// Len returns the current number of buffered records. Thread-safe.
func (w *TranscriptWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
