package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

const (
	eventsKey = "events:scheduler"

	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowFailed    = "workflow.failed"
	EventCanvasDeleted     = "canvas.deleted"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandlers receives decoded signals. Handlers must never be nil.
type EventHandlers struct {
	WorkflowCompleted func(ctx context.Context, ev domain.WorkflowEvent)
	WorkflowFailed    func(ctx context.Context, ev domain.WorkflowEvent)
	CanvasDeleted     func(ctx context.Context, ev domain.CanvasDeletedEvent)
}

// EventBus consumes execution-engine and canvas-lifecycle signals from a
// Redis list. Delivery is at-least-once; consumers are idempotent.
type EventBus struct {
	client *redis.Client
	logger *slog.Logger
}

func NewEventBus(client *redis.Client, logger *slog.Logger) *EventBus {
	return &EventBus{client: client, logger: logger.With("component", "event_bus")}
}

// Publish is used by tooling and tests; in production the execution engine
// pushes onto the same list.
func (b *EventBus) Publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	env, err := json.Marshal(envelope{Type: eventType, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if err := b.client.LPush(ctx, eventsKey, env).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Consume blocks on the event list until ctx is cancelled, dispatching each
// signal to its handler. Decode failures are logged and skipped — a poison
// event must not wedge the consumer.
func (b *EventBus) Consume(ctx context.Context, handlers EventHandlers) {
	b.logger.Info("event consumer started")

	for {
		if ctx.Err() != nil {
			b.logger.Info("event consumer shut down")
			return
		}

		res, err := b.client.BRPop(ctx, 5*time.Second, eventsKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			b.logger.Error("pop event", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			b.logger.Error("decode event envelope", "error", err)
			continue
		}

		switch env.Type {
		case EventWorkflowCompleted, EventWorkflowFailed:
			var ev domain.WorkflowEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				b.logger.Error("decode workflow event", "type", env.Type, "error", err)
				continue
			}
			if env.Type == EventWorkflowCompleted {
				handlers.WorkflowCompleted(ctx, ev)
			} else {
				handlers.WorkflowFailed(ctx, ev)
			}
		case EventCanvasDeleted:
			var ev domain.CanvasDeletedEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				b.logger.Error("decode canvas event", "error", err)
				continue
			}
			handlers.CanvasDeleted(ctx, ev)
		default:
			b.logger.Warn("unknown event type", "type", env.Type)
		}
	}
}
