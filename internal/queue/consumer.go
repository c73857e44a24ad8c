// internal/queue/consumer.go
package queue

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/service"
)

// Decision tells a transport what to do with a delivery.
type Decision int

const (
	Ack Decision = iota
	Requeue
	Drop
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

// EventProcessor runs one decoded notification.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, env *model.Envelope) (*service.DeliveryResult, error)
}

// EventConsumer decodes broker bodies, which have the same shape as the HTTP
// push body, and feeds them to the orchestrator.
type EventConsumer struct {
	Delivery EventProcessor
	Log      logrus.FieldLogger
}

// Decide maps a processing result to a transport action. Registered but not
// completed messages and server side failures are redelivered; anything the
// payload itself is to blame for is dropped.
func Decide(result *service.DeliveryResult, err error) Decision {
	if err == nil {
		if result != nil && result.Outcome == service.OutcomeRegistered {
			return Requeue
		}
		return Ack
	}
	appErr := appErrors.Normalize(err)
	if appErr.StatusCode >= http.StatusInternalServerError || appErr.Kind == appErrors.KindPersistenceConflict {
		return Requeue
	}
	return Drop
}

// Handle processes body and returns what the transport should do with it.
func (c *EventConsumer) Handle(ctx context.Context, body []byte) Decision {
	env, err := service.DecodePushBody(body)
	if err != nil {
		c.Log.WithError(err).Warn("Dropping undecodable message")
		return Drop
	}

	result, err := c.Delivery.ProcessEvent(ctx, env)
	decision := Decide(result, err)

	entry := c.Log.WithFields(logrus.Fields{"messageId": env.ID, "decision": decision.String()})
	if err != nil {
		entry = entry.WithError(err)
	}
	switch decision {
	case Drop:
		entry.Warn("Dropping message")
	case Requeue:
		entry.Info("Message will be redelivered")
	default:
		entry.WithField("outcome", result.Outcome).Debug("Message handled")
	}
	return decision
}

// ErrRequeue is returned by HandleFunc when the delivery should be retried.
var ErrRequeue = errors.New("message requeued")

// HandleFunc adapts the consumer to a queue Handler. Only Requeue surfaces as
// an error so the queue retries it.
func (c *EventConsumer) HandleFunc() Handler {
	return func(ctx context.Context, body []byte) error {
		if c.Handle(ctx, body) == Requeue {
			return ErrRequeue
		}
		return nil
	}
}
