package events

import (
	"context"
	"fmt"
)

// DefaultQueue is the queue vault events are published to.
const DefaultQueue = "vault_events"

// Publisher publishes a JSON message to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, message interface{}) error
}

// AMQPSink publishes events for the worker to persist.
type AMQPSink struct {
	publisher Publisher
	queue     string
}

func NewAMQPSink(p Publisher, queue string) *AMQPSink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPSink{publisher: p, queue: queue}
}

func (s *AMQPSink) Emit(ctx context.Context, evt Event) error {
	if err := s.publisher.Publish(ctx, s.queue, evt); err != nil {
		return fmt.Errorf("publish event %s: %w", evt.ID, err)
	}
	return nil
}
