package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange billing events are published to.
	ExchangeName = "billora.billing.events"

	// DefaultConsumerQueueName is the durable queue the worker consumes from.
	DefaultConsumerQueueName = "billora.notifications"
)

// DialConfig controls how the broker connection is established.
type DialConfig struct {
	URL string
	// MaxElapsed bounds the total time spent retrying the initial dial.
	MaxElapsed time.Duration
	Logger     *slog.Logger
}

// dial connects to RabbitMQ with exponential backoff, opens a channel and
// declares the topic exchange.
func dial(ctx context.Context, cfg DialConfig) (*amqp.Connection, *amqp.Channel, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = cfg.MaxElapsed
	if policy.MaxElapsedTime <= 0 {
		policy.MaxElapsedTime = 30 * time.Second
	}

	var conn *amqp.Connection
	connect := func() error {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			var amqpErr *amqp.Error
			if errors.As(err, &amqpErr) && amqpErr.Code == amqp.AccessRefused {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		cfg.Logger.Warn("rabbitmq dial failed, retrying", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// RabbitMQPublisher publishes events to RabbitMQ.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewRabbitMQPublisher connects a publisher to the billing exchange.
func NewRabbitMQPublisher(ctx context.Context, cfg DialConfig) (*RabbitMQPublisher, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	conn, ch, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("RabbitMQ publisher connected", "exchange", ExchangeName)
	return &RabbitMQPublisher{conn: conn, channel: ch, logger: cfg.Logger}, nil
}

// Publish sends a message to the exchange with the given routing key.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		p.logger.Error("failed to publish message", "routing_key", routingKey, "error", err)
		return err
	}

	p.logger.Debug("message published", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *RabbitMQPublisher) Ping(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// Close closes the publisher connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		p.logger.Warn("error closing channel", "error", err)
	}
	if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	p.logger.Info("RabbitMQ publisher closed")
	return nil
}

// RabbitMQConsumer binds a durable queue to the billing exchange and feeds
// deliveries to a Registry.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	registry *Registry
	logger   *slog.Logger
}

// NewRabbitMQConsumer declares the queue and binds it to every routing key
// the registry has consumers for.
func NewRabbitMQConsumer(ctx context.Context, cfg DialConfig, queue string, registry *Registry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if queue == "" {
		queue = DefaultConsumerQueueName
	}
	conn, ch, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range registry.EventTypes() {
		if err := ch.QueueBind(queue, key, ExchangeName, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	cfg.Logger.Info("RabbitMQ consumer connected", "queue", queue, "exchange", ExchangeName)
	return &RabbitMQConsumer{conn: conn, channel: ch, queue: queue, registry: registry, logger: cfg.Logger}, nil
}

// Start consumes until ctx is cancelled or the delivery channel closes.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.logger.Info("started consuming events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed unexpectedly")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	event, err := decodeEnvelope(msg.RoutingKey, msg.Body)
	if err != nil {
		// Undecodable messages are dropped rather than redelivered forever.
		c.logger.Error("failed to unmarshal event", "routing_key", msg.RoutingKey, "error", err)
		_ = msg.Ack(false)
		return
	}

	if err := c.registry.Dispatch(ctx, event); err != nil {
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

// Close closes the consumer connection.
func (c *RabbitMQConsumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.logger.Warn("error closing channel", "error", err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	c.logger.Info("RabbitMQ consumer closed")
	return nil
}
