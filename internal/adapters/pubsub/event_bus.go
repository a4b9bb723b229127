package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
)

// Envelope wraps every service event published on the event topic.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

// EventBus publishes service events and activity log entries to two topics.
type EventBus struct {
	events   *pubsub.Topic
	activity *pubsub.Topic
	source   string
}

// NewEventBus creates a new EventBus.
func NewEventBus(events, activity *pubsub.Topic, source string) *EventBus {
	return &EventBus{events: events, activity: activity, source: source}
}

var (
	_ portssvc.EventBus        = (*EventBus)(nil)
	_ portssvc.ActivityLogSink = (*EventBus)(nil)
)

func (b *EventBus) SendServiceEvent(ctx context.Context, detail any, detailType string) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", detailType, err)
	}
	data, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Source:     b.source,
		DetailType: detailType,
		Time:       time.Now().UTC(),
		Detail:     raw,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", detailType, err)
	}
	return publish(ctx, b.events, data, map[string]string{"detailType": detailType})
}

func (b *EventBus) SendActivityLog(ctx context.Context, entry domain.ActivityLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode activity log entry: %w", err)
	}
	return publish(ctx, b.activity, data, map[string]string{"template": entry.Template})
}

// Stop flushes pending messages on both topics.
func (b *EventBus) Stop() {
	b.events.Stop()
	b.activity.Stop()
}

func publish(ctx context.Context, topic *pubsub.Topic, data []byte, attrs map[string]string) error {
	res := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic.ID(), err)
	}
	return nil
}
