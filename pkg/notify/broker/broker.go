// Package broker forwards order events to a RabbitMQ fanout exchange so
// processes outside this one (kitchen displays, dashboards) can follow them.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"tablepos/pkg/notify"
)

// DefaultExchange is the fanout exchange events are published to.
const DefaultExchange = "order_events"

// Publisher is the part of *amqp.Channel the Forwarder uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Forwarder is a notify.Observer that publishes every event it receives.
type Forwarder struct {
	mu       sync.Mutex
	pub      Publisher
	exchange string
}

// New returns a Forwarder publishing to exchange through pub.
func New(pub Publisher, exchange string) *Forwarder {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Forwarder{pub: pub, exchange: exchange}
}

// Conn owns the AMQP connection behind a Forwarder.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Close closes the channel and connection.
func (c *Conn) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Dial connects to url, declares the fanout exchange and returns a
// Forwarder bound to it.
func Dial(url, exchange string) (*Forwarder, *Conn, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare %s: %w", exchange, err)
	}
	return New(ch, exchange), &Conn{conn: conn, ch: ch}, nil
}

// ID implements notify.Observer.
func (f *Forwarder) ID() string { return "broker:" + f.exchange }

// Notify implements notify.Observer.
func (f *Forwarder) Notify(ctx context.Context, ev notify.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: strconv.FormatInt(ev.OrderID, 10),
		Timestamp:     time.Now().UTC(),
		Type:          string(ev.Kind),
		Headers: amqp.Table{
			"x-source": "tablepos",
			"x-table":  int32(ev.Table),
		},
		Body: body,
	}
	// channels are not safe for concurrent publishing
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pub.PublishWithContext(ctx, f.exchange, "order."+string(ev.Kind), false, false, msg)
}
