package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/config"
	"github.com/quejas/complaint-service/internal/observability"
)

// Appender writes one flat entry to an external stream.
type Appender interface {
	Append(ctx context.Context, values map[string]any) (string, error)
}

// Entry is an event waiting to be appended.
type Entry struct {
	EventType string
	Values    map[string]any
}

// NotificationWorker delivers events to the stream off the request path.
// Enqueue never blocks; each append is bounded by its own timeout.
type NotificationWorker struct {
	stream  Appender
	queue   chan Entry
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// StartNotificationWorker creates the worker and starts draining its queue.
func StartNotificationWorker(stream Appender, cfg config.EventsConfig, metrics *observability.Metrics, logger *zap.Logger) *NotificationWorker {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	timeout := cfg.PublishTimeout()
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &NotificationWorker{
		stream:  stream,
		queue:   make(chan Entry, size),
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue hands an entry to the worker. It returns false when the queue is full or stopped.
func (w *NotificationWorker) Enqueue(entry Entry) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.metrics.RecordEventDropped(entry.EventType)
		return false
	}
	select {
	case w.queue <- entry:
		return true
	default:
		w.metrics.RecordEventDropped(entry.EventType)
		return false
	}
}

// Stop refuses new entries and waits for queued ones to be delivered or for ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) run() {
	defer close(w.done)
	for entry := range w.queue {
		w.deliver(entry)
	}
}

func (w *NotificationWorker) deliver(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	_, err := w.stream.Append(ctx, entry.Values)
	w.metrics.RecordEvent(entry.EventType, err)
	if err != nil {
		w.logger.Warn("event stream append failed",
			zap.String("event_type", entry.EventType),
			zap.Any("event_id", entry.Values["id"]),
			zap.Error(err))
	}
}
