// internal/queue/amqp_consumer.go
package queue

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// RedeliveryHeader counts how often a message was put back on the queue.
const RedeliveryHeader = "x-redelivery"

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPConsumer reads push bodies from a durable queue with manual acks.
type AMQPConsumer struct {
	URL             string
	Queue           string
	MaxRedeliveries int
	Events          *EventConsumer
	Log             logrus.FieldLogger
}

// Run consumes until ctx is cancelled or the connection drops.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.Queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	c.Log.WithField("queue", q.Name).Info("AMQP consumer running, waiting for messages")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			c.handleDelivery(ctx, ch, d)
		}
	}
}

// handleDelivery acks, drops or republishes d. A requeue republishes with an
// incremented redelivery header, since a nack cannot change headers.
func (c *AMQPConsumer) handleDelivery(ctx context.Context, pub publisher, d amqp.Delivery) {
	decision := c.Events.Handle(ctx, d.Body)
	if decision != Requeue {
		c.ack(d)
		return
	}

	count := redeliveries(d.Headers)
	log := c.Log.WithFields(logrus.Fields{"redelivery": count, "maxRedeliveries": c.MaxRedeliveries})
	if count >= c.MaxRedeliveries {
		log.Error("Message exceeded redelivery limit, dropping")
		c.ack(d)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RedeliveryHeader] = int32(count + 1)

	err := pub.Publish("", c.Queue, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Body:         d.Body,
	})
	if err != nil {
		log.WithError(err).Error("Failed to republish message, requeueing original")
		if nerr := d.Nack(false, true); nerr != nil {
			log.WithError(nerr).Error("Failed to nack message")
		}
		return
	}
	c.ack(d)
}

func (c *AMQPConsumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.Log.WithError(err).Error("Failed to ack message")
	}
}

// redeliveries reads the header value whatever integer type the wire produced.
func redeliveries(h amqp.Table) int {
	switch v := h[RedeliveryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
