// Package events publishes domain events to Kafka. Publishing is best-effort:
// the audit chain is the system of record, so a broker outage is logged and
// never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Topics per aggregate.
const (
	TopicApplications = "mortgage.applications"
	TopicDecisions    = "mortgage.decisions"
	TopicDocuments    = "mortgage.documents"
)

// Envelope is the wire shape of a published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher writes envelopes to per-topic Kafka writers. A nil Publisher is
// valid and drops everything, which keeps tests and broker-less deployments
// simple.
type Publisher struct {
	mu      sync.Mutex
	writers map[string]*kafkago.Writer
	brokers []string
	logger  *slog.Logger
}

// NewPublisher creates a publisher over the given brokers. An empty broker
// list returns nil.
func NewPublisher(brokers []string, logger *slog.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writers: make(map[string]*kafkago.Writer),
		brokers: brokers,
		logger:  logger,
	}
}

// Publish marshals and sends one event. Errors are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, topic, eventType, aggregateType, aggregateID string, payload any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event payload marshal failed", "event_type", eventType, "error", err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		OccurredAt:    time.Now().UTC(),
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("event envelope marshal failed", "event_type", eventType, "error", err)
		return
	}

	w := p.getOrCreateWriter(topic)
	msg := kafkago.Message{Key: []byte(aggregateID), Value: value}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event publish failed", "topic", topic, "event_type", eventType, "error", err)
	}
}

// Close closes all topic writers.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.writers = make(map[string]*kafkago.Writer)
	return firstErr
}

func (p *Publisher) getOrCreateWriter(topic string) *kafkago.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	p.writers[topic] = w
	return w
}
