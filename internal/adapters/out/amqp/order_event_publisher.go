// internal/adapters/out/amqp/order_event_publisher.go
package amqpout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storefront/internal/application/usecase"
)

const (
	// RoutingKeyOrderCompleted is the routing key of checkout completion events.
	RoutingKeyOrderCompleted = "order.completed"

	defaultExchange = "storefront_orders"
	defaultQueue    = "storefront_order_completed"
)

var ErrPublisherClosed = errors.New("amqp: publisher closed")

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// OrderEventPublisher publishes order-completed events as persistent JSON messages.
type OrderEventPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	exchange string
	now      func() time.Time
	log      *zap.Logger
}

var _ usecase.OrderEventPublisher = (*OrderEventPublisher)(nil)

// Dial connects, declares the topology and returns a ready publisher.
func Dial(cfg Config, logger *zap.Logger) (*OrderEventPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: channel: %w", err)
	}
	p, err := NewOrderEventPublisher(ch, cfg, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewOrderEventPublisher declares a durable topic exchange and a bound queue on ch.
func NewOrderEventPublisher(ch Channel, cfg Config, logger *zap.Logger) (*OrderEventPublisher, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = defaultExchange
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("amqp: declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return nil, fmt.Errorf("amqp: declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, RoutingKeyOrderCompleted, cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("amqp: bind queue: %w", err)
	}

	return &OrderEventPublisher{
		ch:       ch,
		exchange: cfg.Exchange,
		now:      time.Now,
		log:      logger.Named("amqp"),
	}, nil
}

func (p *OrderEventPublisher) PublishOrderCompleted(ctx context.Context, ev usecase.OrderCompletedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("amqp: encode event: %w", err)
	}
	msgID := ev.OrderID
	if msgID == "" {
		msgID = ev.OrderNumber
	}
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		ContentType:  "application/json",
		MessageId:    msgID,
		Type:         RoutingKeyOrderCompleted,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrPublisherClosed
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyOrderCompleted, false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish: %w", err)
	}
	p.log.Debug("order event published", zap.String("message_id", msgID))
	return nil
}

func (p *OrderEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
