package notify

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisGateway pushes JSON messages onto a Redis list. Consumers pop from
// the other end (BRPOP) so the list behaves as a FIFO queue.
type RedisGateway struct {
	client *redis.Client
	queue  string
}

// NewRedisGateway connects and pings the server.
func NewRedisGateway(ctx context.Context, cfg config.RedisConfig) (*RedisGateway, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return NewRedisGatewayWithClient(client, cfg.Queue), nil
}

// NewRedisGatewayWithClient wraps an existing client.
func NewRedisGatewayWithClient(client *redis.Client, queue string) *RedisGateway {
	return &RedisGateway{client: client, queue: queue}
}

// Notify pushes n onto the head of the queue list.
func (g *RedisGateway) Notify(ctx context.Context, n model.Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}
	if err := g.client.LPush(ctx, g.queue, body).Err(); err != nil {
		return fmt.Errorf("push notification %s: %w", n.ID, err)
	}
	return nil
}

// Close closes the underlying client.
func (g *RedisGateway) Close() error { return g.client.Close() }
