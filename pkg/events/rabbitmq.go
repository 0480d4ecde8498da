// Package events publishes order lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/orderdesk/pkg/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// ErrNack is returned when the broker refuses a published message.
var ErrNack = errors.New("publish NACK from broker")

// OrderPlaced is published once an order has been stored.
type OrderPlaced struct {
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	RestaurantID   string          `json:"restaurant_id"`
	MenuID         string          `json:"menu_id"`
	ItemCount      int             `json:"item_count"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	DeliveryOption string          `json:"delivery_option"`
	PlacedAt       time.Time       `json:"placed_at"`
}

// RoutingKey is order.placed.<delivery option>, so consumers can bind to
// deliveries only.
func (e OrderPlaced) RoutingKey() string {
	return fmt.Sprintf("order.placed.%s", e.DeliveryOption)
}

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // publishes are serialized while waiting for confirms
}

// Dial connects, declares the topic exchange and enables publisher confirms.
func Dial(cfg *config.RabbitMQConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange, acks: acks}, nil
}

func (p *Publisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// PublishOrderPlaced publishes e persistently and waits for the broker ack.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, e OrderPlaced) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey(), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    e.OrderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.RoutingKey(), err)
	}

	select {
	case conf := <-p.acks:
		if conf.Ack {
			return nil
		}
		return ErrNack
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
