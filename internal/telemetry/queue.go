package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFlushInterval is the periodic flush cadence.
	DefaultFlushInterval = 5 * time.Second
	// DefaultMaxQueue triggers an immediate flush when reached.
	DefaultMaxQueue = 50
)

// Event is one interaction event pending delivery.
type Event struct {
	SessionID        string    `json:"session_id"`
	EventType        string    `json:"event_type"`
	Duration         *float64  `json:"duration,omitempty"`
	FromVideoID      *string   `json:"from_video_id,omitempty"`
	ToVideoID        *string   `json:"to_video_id,omitempty"`
	PlaybackPosition *float64  `json:"playback_position,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Sender delivers a batch to the ingestion boundary. The whole batch
// succeeds or fails as one.
type Sender interface {
	Send(ctx context.Context, batch []Event) error
}

// Queue buffers events and flushes them as batches on a timer, on a size
// threshold, and on shutdown. A failed batch is put back ahead of newer
// events so order is preserved and nothing is dropped silently. At most one
// flush is in flight at a time.
type Queue struct {
	mu       sync.Mutex
	pending  []Event
	flushing bool

	sender   Sender
	interval time.Duration
	maxQueue int
	logger   *zap.Logger
}

// NewQueue creates a telemetry queue. Zero interval and maxQueue pick the
// defaults.
func NewQueue(sender Sender, interval time.Duration, maxQueue int, logger *zap.Logger) *Queue {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		sender:   sender,
		interval: interval,
		maxQueue: maxQueue,
		logger:   logger,
	}
}

// Enqueue appends an event, stamping it with the current time if the caller
// left the timestamp zero. Events without a session id have nothing to
// attach to server-side and are dropped here rather than sent unattributed.
// Reaching the size threshold flushes immediately.
func (q *Queue) Enqueue(ctx context.Context, e Event) {
	if e.SessionID == "" {
		q.logger.Debug("dropping unattributed event", zap.String("event_type", e.EventType))
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	q.mu.Lock()
	q.pending = append(q.pending, e)
	full := len(q.pending) >= q.maxQueue
	q.mu.Unlock()

	if full {
		q.Flush(ctx)
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush detaches the pending events and attempts delivery. If a flush is
// already in flight it returns immediately; the in-flight flush or the next
// cycle will pick the new events up. On delivery failure the batch is
// prepended back before anything enqueued during the attempt.
func (q *Queue) Flush(ctx context.Context) {
	q.mu.Lock()
	if q.flushing || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	err := q.sender.Send(ctx, batch)

	q.mu.Lock()
	q.flushing = false
	if err != nil {
		q.pending = append(batch, q.pending...)
	}
	n := len(q.pending)
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("telemetry flush failed, batch requeued",
			zap.Int("batch_size", len(batch)),
			zap.Int("pending", n),
			zap.Error(err))
		return
	}
	q.logger.Debug("telemetry flushed", zap.Int("batch_size", len(batch)))
}

// Run flushes on the configured interval until ctx is done, then makes one
// best-effort shutdown flush.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			q.Shutdown()
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Shutdown makes one best-effort flush with a short deadline. Events that
// fail delivery here are an accepted loss.
func (q *Queue) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	q.Flush(ctx)
}
