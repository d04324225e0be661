package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/config"
	"github.com/Shivanand-hulikatti/mentor-events/internal/logging"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = model.Notification{
	ID:         "n-1",
	EventID:    "e-1",
	Recipients: []string{"mentor-a", "mentor-b"},
	Title:      "Reminder: Resume review night",
	Body:       "Starts at 18:00",
	CreatedAt:  time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC),
}

func decode(t *testing.T, body []byte) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func TestEncode_EmptyRecipients(t *testing.T) {
	body, err := encode(model.Notification{ID: "n-2"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"recipients":[]`)
}

func TestRedisGateway_Notify(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gw := NewRedisGatewayWithClient(client, "notifications")
	t.Cleanup(func() { _ = gw.Close() })

	require.NoError(t, gw.Notify(context.Background(), sample))
	second := sample
	second.ID = "n-2"
	require.NoError(t, gw.Notify(context.Background(), second))

	items, err := mr.List("notifications")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// LPUSH puts the newest at the head.
	assert.Equal(t, "n-2", decode(t, []byte(items[0])).ID)
	got := decode(t, []byte(items[1]))
	assert.Equal(t, "e-1", got.EventID)
	assert.Equal(t, sample.Recipients, got.Recipients)
	assert.Equal(t, sample.CreatedAt, got.CreatedAt)
}

func TestRedisGateway_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	gw := NewRedisGatewayWithClient(client, "notifications")
	mr.Close()

	err := gw.Notify(context.Background(), sample)
	assert.Error(t, err)
}

func TestNewRedisGateway_Pings(t *testing.T) {
	mr := miniredis.RunT(t)

	gw, err := NewRedisGateway(context.Background(), config.RedisConfig{Addr: mr.Addr(), Queue: "q"})
	require.NoError(t, err)
	require.NoError(t, gw.Close())
}

type fakeChannel struct {
	exchange, key string
	published     []amqp.Publishing
	err           error
	closeErr      error
	closed        bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange, c.key = exchange, key
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return c.closeErr
}

type fakeConn struct {
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestRabbitMQGateway_Notify(t *testing.T) {
	ch := &fakeChannel{}
	gw := &RabbitMQGateway{channel: ch, queue: "mentor_events.notifications"}

	require.NoError(t, gw.Notify(context.Background(), sample))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "", ch.exchange)
	assert.Equal(t, "mentor_events.notifications", ch.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "n-1", msg.MessageId)
	assert.Equal(t, sample.Title, decode(t, msg.Body).Title)

	require.NoError(t, gw.Close())
	assert.True(t, ch.closed)
}

func TestRabbitMQGateway_CloseClosesConnectionOnChannelError(t *testing.T) {
	conn := &fakeConn{}
	gw := &RabbitMQGateway{conn: conn, channel: &fakeChannel{closeErr: amqp.ErrClosed}, queue: "q"}

	err := gw.Close()

	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.True(t, conn.closed)
}

func TestRabbitMQGateway_PublishError(t *testing.T) {
	gw := &RabbitMQGateway{channel: &fakeChannel{err: amqp.ErrClosed}, queue: "q"}

	err := gw.Notify(context.Background(), sample)

	require.Error(t, err)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaGateway_Notify(t *testing.T) {
	w := &fakeWriter{}
	gw := &KafkaGateway{writer: w}

	require.NoError(t, gw.Notify(context.Background(), sample))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("e-1"), w.msgs[0].Key)
	assert.Equal(t, sample.Body, decode(t, w.msgs[0].Value).Body)
}

func TestKafkaGateway_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	gw := &KafkaGateway{writer: &fakeWriter{err: boom}}

	err := gw.Notify(context.Background(), sample)

	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaGateway_Configures(t *testing.T) {
	gw := NewKafkaGateway(config.KafkaConfig{Brokers: []string{"a:9092", "b:9092"}, Topic: "t"})

	w, ok := gw.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "t", w.Topic)
	assert.Contains(t, w.Addr.String(), "a:9092")
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}

func TestNew_SelectsDriver(t *testing.T) {
	log := logging.Discard()

	gw, err := New(context.Background(), config.NotifyConfig{Driver: "log"}, log)
	require.NoError(t, err)
	assert.IsType(t, &LogGateway{}, gw)
	assert.NoError(t, gw.Notify(context.Background(), sample))

	gw, err = New(context.Background(), config.NotifyConfig{
		Driver: "kafka",
		Kafka:  config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"},
	}, log)
	require.NoError(t, err)
	assert.IsType(t, &KafkaGateway{}, gw)

	_, err = New(context.Background(), config.NotifyConfig{Driver: "pigeon"}, log)
	assert.Error(t, err)
}
