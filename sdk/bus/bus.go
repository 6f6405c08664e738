// Package bus wraps the AMQP channel used for migration requests and
// results. Topology is declared on connect: one direct exchange with
// the request queue bound to the task key and the result queue bound
// to the result key.
package bus

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Routing keys on the migration exchange.
const (
	TaskKey   = "task"
	ResultKey = "result"
)

var log = logrus.WithField("component", "bus")

// Config names the broker endpoint and the topology to declare.
type Config struct {
	URL          string
	Exchange     string
	RequestQueue string
	ResultQueue  string
}

// Bus is one AMQP connection with one channel.
type Bus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  Config
}

// Connect dials the broker and declares the exchange and queues.
func Connect(cfg Config) (*Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	b := &Bus{conn: conn, ch: ch, cfg: cfg}
	if err := b.declareTopology(); err != nil {
		b.Close()
		return nil, err
	}
	log.WithField("exchange", cfg.Exchange).Info("broker topology declared")
	return b, nil
}

func (b *Bus) declareTopology() error {
	if err := b.ch.ExchangeDeclare(b.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	bindings := []struct{ queue, key string }{
		{b.cfg.RequestQueue, TaskKey},
		{b.cfg.ResultQueue, ResultKey},
	}
	for _, bind := range bindings {
		if _, err := b.ch.QueueDeclare(bind.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", bind.queue, err)
		}
		if err := b.ch.QueueBind(bind.queue, bind.key, b.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", bind.queue, err)
		}
	}
	return nil
}

// Consume delivers migration requests with manual acknowledgement.
// The caller acks processed messages and rejects poison ones without
// requeueing.
func (b *Bus) Consume() (<-chan amqp.Delivery, error) {
	deliveries, err := b.ch.Consume(b.cfg.RequestQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", b.cfg.RequestQueue, err)
	}
	return deliveries, nil
}

// PublishResult posts a result envelope to the exchange.
func (b *Bus) PublishResult(ctx context.Context, body []byte) error {
	err := b.ch.PublishWithContext(ctx, b.cfg.Exchange, ResultKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// NotifyClose reports asynchronous channel shutdown so the worker
// loop can reconnect.
func (b *Bus) NotifyClose() chan *amqp.Error {
	return b.ch.NotifyClose(make(chan *amqp.Error, 1))
}

// Close tears down the channel and connection.
func (b *Bus) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
