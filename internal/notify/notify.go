// Package notify delivers event notifications to registrants through a
// pluggable gateway: the process log, a Redis list, a RabbitMQ queue or a
// Kafka topic. Delivery is best effort; the outbox dispatcher owns retries.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/sirupsen/logrus"
)

// Gateway hands one notification to the delivery channel.
type Gateway interface {
	Notify(ctx context.Context, n model.Notification) error
	Close() error
}

// Message is the wire envelope published by the broker gateways.
type Message struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	Recipients []string  `json:"recipients"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

func encode(n model.Notification) ([]byte, error) {
	recipients := n.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	body, err := json.Marshal(Message{
		ID:         n.ID,
		EventID:    n.EventID,
		Recipients: recipients,
		Title:      n.Title,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return body, nil
}

// New builds the gateway selected by cfg.Driver.
func New(ctx context.Context, cfg config.NotifyConfig, log logrus.FieldLogger) (Gateway, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogGateway(log), nil
	case "redis":
		gw, err := NewRedisGateway(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case "rabbitmq":
		gw, err := NewRabbitMQGateway(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case "kafka":
		return NewKafkaGateway(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Driver)
	}
}
