package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpupo63/portfolio-cms/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AccessLogWriter persists one access log row. *database.AccessLogRepo satisfies it.
type AccessLogWriter interface {
	Add(ctx context.Context, entry *models.AccessLog) error
}

const accessLogWriteTimeout = 5 * time.Second

// AccessLogRecorder writes access log rows from a single background worker so request
// handling never waits on the database. When the buffer is full, entries are dropped.
type AccessLogRecorder struct {
	writer  AccessLogWriter
	entries chan models.AccessLog
	done    chan struct{}
	onDrop  func()
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	written atomic.Int64
}

// NewAccessLogRecorder starts the worker. onDrop, if set, is called for every dropped entry.
func NewAccessLogRecorder(writer AccessLogWriter, buffer int, onDrop func()) *AccessLogRecorder {
	if buffer <= 0 {
		buffer = 1
	}
	r := &AccessLogRecorder{
		writer:  writer,
		entries: make(chan models.AccessLog, buffer),
		done:    make(chan struct{}),
		onDrop:  onDrop,
		logger:  log.With().Str("serviceName", "accessLogRecorder").Logger(),
	}
	go r.run()
	return r
}

// Record queues entry without blocking. It returns false if the entry was dropped.
func (r *AccessLogRecorder) Record(entry models.AccessLog) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.closed {
		select {
		case r.entries <- entry:
			return true
		default:
		}
	}

	r.dropped.Add(1)
	if r.onDrop != nil {
		r.onDrop()
	}
	return false
}

// Dropped returns how many entries were discarded.
func (r *AccessLogRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns how many entries the worker has persisted.
func (r *AccessLogRecorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (r *AccessLogRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		r.logger.Info().Int64("written", r.Written()).Int64("dropped", r.Dropped()).Msg("access log recorder drained")
		return nil
	case <-ctx.Done():
		r.logger.Warn().Int("pending", len(r.entries)).Msg("access log recorder did not drain in time")
		return ctx.Err()
	}
}

func (r *AccessLogRecorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		r.write(entry)
	}
}

func (r *AccessLogRecorder) write(entry models.AccessLog) {
	ctx, cancel := context.WithTimeout(context.Background(), accessLogWriteTimeout)
	defer cancel()

	if err := r.writer.Add(ctx, &entry); err != nil {
		r.logger.Error().Err(err).Str("path", entry.Path).Str("method", entry.Method).Msg("failed to write access log")
		return
	}
	r.written.Add(1)
}
