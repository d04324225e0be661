package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of *amqp.Channel used by the gateway.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQGateway publishes persistent JSON messages to a durable queue
// through the default exchange.
type RabbitMQGateway struct {
	conn    io.Closer
	channel publisher
	queue   string
}

// NewRabbitMQGateway dials the broker, opens a channel and declares the
// durable notification queue.
func NewRabbitMQGateway(cfg config.RabbitMQConfig) (*RabbitMQGateway, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	return &RabbitMQGateway{conn: conn, channel: channel, queue: q.Name}, nil
}

// Notify publishes n as a persistent message keyed by its id.
func (g *RabbitMQGateway) Notify(ctx context.Context, n model.Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}

	err = g.channel.PublishWithContext(
		ctx,
		"",      // exchange
		g.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    n.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

// Close closes the channel and then the connection, even if the channel
// fails to close.
func (g *RabbitMQGateway) Close() error {
	err := g.channel.Close()
	if g.conn != nil {
		err = errors.Join(err, g.conn.Close())
	}
	return err
}
