// internal/queue/nats_consumer.go
package queue

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type natsAcker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// NATSConsumer reads push bodies from a JetStream durable consumer.
type NATSConsumer struct {
	URL        string
	Stream     string
	Subject    string
	Durable    string
	MaxDeliver int
	Events     *EventConsumer
	Log        logrus.FieldLogger
}

// Run subscribes and blocks until ctx is cancelled.
func (c *NATSConsumer) Run(ctx context.Context) error {
	nc, err := nats.Connect(c.URL, nats.Name("notify-worker"))
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	if err := c.ensureStream(js); err != nil {
		return err
	}

	sub, err := js.Subscribe(c.Subject, func(msg *nats.Msg) {
		c.handleMsg(ctx, msg.Data, msg)
	},
		nats.Durable(c.Durable),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(c.MaxDeliver),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	c.Log.WithFields(logrus.Fields{"subject": c.Subject, "durable": c.Durable}).Info("NATS consumer running, waiting for messages")
	<-ctx.Done()
	return nil
}

func (c *NATSConsumer) ensureStream(js nats.JetStreamContext) error {
	if c.Stream == "" {
		return nil
	}
	_, err := js.StreamInfo(c.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{Name: c.Stream, Subjects: []string{c.Subject}})
	return err
}

// handleMsg maps the decision onto JetStream acks: Nak redelivers until
// MaxDeliver, Term stops redelivery of poison messages.
func (c *NATSConsumer) handleMsg(ctx context.Context, data []byte, m natsAcker) {
	var err error
	switch c.Events.Handle(ctx, data) {
	case Requeue:
		err = m.Nak()
	case Drop:
		err = m.Term()
	default:
		err = m.Ack()
	}
	if err != nil {
		c.Log.WithError(err).Error("Failed to acknowledge NATS message")
	}
}
