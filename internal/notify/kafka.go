package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaGateway produces one message per notification, keyed by event ID so
// that an event's notifications stay ordered within a partition.
type KafkaGateway struct {
	writer messageWriter
}

// NewKafkaGateway builds a hash-balanced writer for cfg.Topic.
func NewKafkaGateway(cfg config.KafkaConfig) *KafkaGateway {
	return &KafkaGateway{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

// Notify writes n as one message keyed by its event id.
func (g *KafkaGateway) Notify(ctx context.Context, n model.Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(n.EventID),
		Value: body,
		Time:  time.Now(),
	}
	if err := g.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write notification %s: %w", n.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (g *KafkaGateway) Close() error { return g.writer.Close() }
