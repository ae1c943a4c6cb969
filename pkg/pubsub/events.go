package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 10 * time.Second

// Envelope wraps every event published by the service.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicAdapter struct {
	topic *pubsub.Publisher
}

func (a topicAdapter) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return a.topic.Publish(ctx, msg)
}

func (a topicAdapter) ResumePublish(key string) {
	a.topic.ResumePublish(key)
}

// EventPublisher publishes JSON envelopes to one topic and waits for the server ack.
type EventPublisher struct {
	pub     publisher
	timeout time.Duration
	now     func() time.Time
}

// NewEventPublisher wraps a topic publisher handle.
func NewEventPublisher(topic *pubsub.Publisher) (*EventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &EventPublisher{pub: topicAdapter{topic: topic}, timeout: defaultPublishTimeout, now: time.Now}, nil
}

// Publish sends data as an event of the given type; key orders messages per aggregate.
func (p *EventPublisher) Publish(ctx context.Context, eventType, key string, data any) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("event publisher not initialized")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode event data: %w", err)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: p.now().UTC(),
		Data:       payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_type": eventType,
			"event_id":   env.EventID,
		},
		OrderingKey: key,
	}
	serverID, err := p.pub.Publish(ctx, msg).Get(ctx)
	if err != nil {
		// A failed ordered publish pauses the key until resumed.
		if key != "" {
			p.pub.ResumePublish(key)
		}
		return "", fmt.Errorf("publish %s: %w", eventType, err)
	}
	return serverID, nil
}
