package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards events to a Kafka topic as JSON, keyed by
// instrument so each instrument's stream stays ordered in one partition.
type KafkaPublisher struct {
	writer messageWriter
	tick   decimal.Decimal
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, tick decimal.Decimal) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w, tick: tick}
}

// Handle publishes one event.
func (p *KafkaPublisher) Handle(ctx context.Context, ev domain.Event) error {
	value, err := json.Marshal(NewPayload(ev, p.tick))
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Instrument),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
		Time: ev.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event %d: %w", ev.Seq, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
