package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohdear-panel/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

// Plugin event types
const (
	SettingsSaved     = "ohdear.settings.saved"
	CheckToggled      = "ohdear.check.toggled"
	CheckRunRequested = "ohdear.check.run_requested"
)

type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	AggregateID string                 `json:"aggregateId"`
	Timestamp   time.Time              `json:"timestamp"`
	UserID      string                 `json:"userId"`
	Payload     map[string]interface{} `json:"payload"`
}

type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler EventHandler) error
	Close() error
}

type EventHandler func(ctx context.Context, event Event) error

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaEventBus publishes plugin events to a single topic. Subscribers are
// local: they observe what this process publishes.
type KafkaEventBus struct {
	writer *kafka.Writer
	local  *LocalEventBus
}

func NewKafkaEventBus(config KafkaConfig) (*KafkaEventBus, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}

	return &KafkaEventBus{
		writer: writer,
		local:  NewLocalEventBus(),
	}, nil
}

func (k *KafkaEventBus) Publish(ctx context.Context, event Event) error {
	event = prepare(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	// Local subscribers run even when the broker is unreachable.
	var writeErr error
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		writeErr = fmt.Errorf("failed to write event: %w", err)
	}

	return errors.Join(writeErr, k.local.Publish(ctx, event))
}

func (k *KafkaEventBus) Subscribe(eventType string, handler EventHandler) error {
	return k.local.Subscribe(eventType, handler)
}

func (k *KafkaEventBus) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// LocalEventBus dispatches events synchronously to in-process handlers.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		handlers: make(map[string][]EventHandler),
	}
}

func (b *LocalEventBus) Publish(ctx context.Context, event Event) error {
	event = prepare(event)

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handler for %s failed: %w", event.Type, err)
		}
	}
	return nil
}

func (b *LocalEventBus) Subscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *LocalEventBus) Close() error {
	return nil
}

func prepare(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// EventBuilder helps assemble events
type EventBuilder struct {
	event Event
}

func NewEventBuilder(eventType string) *EventBuilder {
	return &EventBuilder{
		event: Event{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Payload:   make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithAggregateID(id string) *EventBuilder {
	b.event.AggregateID = id
	return b
}

func (b *EventBuilder) WithUserID(userID string) *EventBuilder {
	b.event.UserID = userID
	return b
}

func (b *EventBuilder) WithPayload(key string, value interface{}) *EventBuilder {
	b.event.Payload[key] = value
	return b
}

func (b *EventBuilder) Build() Event {
	return b.event
}
