package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"routeopt/pkg/logger"
)

// New builds a Logger from the config. Disabled audit yields a NoopLogger;
// an unknown backend falls back to stdout rather than failing startup.
func New(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return &NoopLogger{}, nil
	}

	switch cfg.Backend {
	case "file":
		return NewFileLogger(cfg)
	case "stdout", "":
		return NewStdoutLogger(), nil
	default:
		logger.Log.Warn("unknown audit backend, falling back to stdout", "backend", cfg.Backend)
		return NewStdoutLogger(), nil
	}
}

// StdoutLogger writes one JSON entry per line to standard output.
type StdoutLogger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{enc: json.NewEncoder(os.Stdout)}
}

func (l *StdoutLogger) Log(_ context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

func (l *StdoutLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, fmt.Errorf("stdout audit backend does not support queries")
}

func (l *StdoutLogger) Close() error { return nil }

// FileLogger appends JSON entries to a file. Writes go through a buffered
// channel and a background goroutine; the bufio writer is flushed on a
// timer and on Close.
type FileLogger struct {
	file    *os.File
	writer  *bufio.Writer
	mu      sync.Mutex // protects writer
	entries chan *Entry
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewFileLogger opens (or creates) the audit file and starts the writer
// goroutine. An empty FilePath defaults to audit.log in the working
// directory.
func NewFileLogger(cfg *Config) (*FileLogger, error) {
	path := cfg.FilePath
	if path == "" {
		path = "audit.log"
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = 1000
	}
	period := cfg.FlushPeriod
	if period <= 0 {
		period = 5 * time.Second
	}

	l := &FileLogger{
		file:    file,
		writer:  bufio.NewWriter(file),
		entries: make(chan *Entry, size),
		stop:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run(period)

	return l, nil
}

// Log enqueues the entry. When the channel is full the entry is written
// synchronously so nothing is dropped under burst load.
func (l *FileLogger) Log(_ context.Context, entry *Entry) error {
	select {
	case l.entries <- entry:
		return nil
	default:
		return l.write(entry)
	}
}

func (l *FileLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, fmt.Errorf("file audit backend does not support queries")
}

// Close stops the writer goroutine, drains anything still queued, flushes
// and closes the file.
func (l *FileLogger) Close() error {
	close(l.stop)
	l.wg.Wait()

	for {
		select {
		case entry := <-l.entries:
			if err := l.write(entry); err != nil {
				logger.Log.Warn("audit entry lost during shutdown", "error", err)
			}
		default:
			l.mu.Lock()
			flushErr := l.writer.Flush()
			l.mu.Unlock()
			if err := l.file.Close(); err != nil {
				return err
			}
			return flushErr
		}
	}
}

func (l *FileLogger) run(period time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case entry := <-l.entries:
			if err := l.write(entry); err != nil {
				logger.Log.Warn("audit entry write failed", "error", err)
			}
		case <-ticker.C:
			l.mu.Lock()
			if err := l.writer.Flush(); err != nil {
				logger.Log.Warn("audit flush failed", "error", err)
			}
			l.mu.Unlock()
		}
	}
}

func (l *FileLogger) write(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(data); err != nil {
		return err
	}
	return l.writer.WriteByte('\n')
}

// NoopLogger discards everything. Used when audit is disabled so call
// sites never need a nil check.
type NoopLogger struct{}

func (l *NoopLogger) Log(_ context.Context, _ *Entry) error { return nil }

func (l *NoopLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, nil
}

func (l *NoopLogger) Close() error { return nil }

var (
	globalMu     sync.RWMutex
	globalLogger Logger = &NoopLogger{}
)

// SetGlobal installs the process-wide audit logger used by Log.
func SetGlobal(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Get returns the current process-wide audit logger.
func Get() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Log records an entry through the process-wide logger.
func Log(ctx context.Context, entry *Entry) error {
	return Get().Log(ctx, entry)
}
