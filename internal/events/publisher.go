package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Publisher delivers domain events to the outbound queue.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// AsynqPublisher enqueues events as asynq tasks on the default queue, which
// makes the hand-off to notification/report consumers durable.
type AsynqPublisher struct {
	client *asynq.Client
}

// NewAsynqPublisher constructs the publisher.
func NewAsynqPublisher(client *asynq.Client) *AsynqPublisher {
	return &AsynqPublisher{client: client}
}

// Publish implements Publisher.
func (p *AsynqPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", evt.Kind(), err)
	}
	task := asynq.NewTask(evt.Kind(), payload)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.TaskID(uuid.NewString()), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("events: enqueue %s: %w", evt.Kind(), err)
	}
	return nil
}

// MemoryPublisher collects events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	Events []Event
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, evt)
	return nil
}

// ByKind returns the captured events matching kind.
func (p *MemoryPublisher) ByKind(kind string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, evt := range p.Events {
		if evt.Kind() == kind {
			out = append(out, evt)
		}
	}
	return out
}
