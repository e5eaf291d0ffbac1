package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/events"
	"github.com/quejas/complaint-service/internal/worker"
)

// EventQueue accepts stream entries without blocking the caller.
type EventQueue interface {
	Enqueue(entry worker.Entry) bool
}

// NotificationService forwards complaint events to the log and, when configured, the stream queue.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      EventQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service. queue may be nil.
func NewNotificationService(dispatcher events.Dispatcher, queue EventQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintCreated, n.handle)
	n.dispatcher.Subscribe(events.EventComplaintStatusChanged, n.handle)
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("tracking_code", event.TrackingCode),
		zap.Any("payload", event.Payload))

	if n.queue == nil {
		return nil
	}
	values, err := streamValues(event)
	if err != nil {
		return err
	}
	if !n.queue.Enqueue(worker.Entry{EventType: string(event.Type), Values: values}) {
		return fmt.Errorf("event %s dropped: stream queue full or stopped", event.ID)
	}
	return nil
}

func streamValues(event events.Event) (map[string]any, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return map[string]any{
		"id":            event.ID,
		"type":          string(event.Type),
		"tracking_code": event.TrackingCode,
		"timestamp":     event.Timestamp.Format(time.RFC3339Nano),
		"payload":       string(payload),
	}, nil
}
