package queue

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/service"
)

// --- Mocks ---

type MockProcessor struct {
	mu      sync.Mutex
	outcome service.Outcome
	err     error
	calls   int
}

func (m *MockProcessor) ProcessEvent(ctx context.Context, env *model.Envelope) (*service.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &service.DeliveryResult{MessageID: env.ID, Outcome: m.outcome}, nil
}

func newEvents(p *MockProcessor) *EventConsumer {
	log, _ := test.NewNullLogger()
	return &EventConsumer{Delivery: p, Log: log}
}

var validBody = []byte(`{"message":{"data":"` +
	base64.StdEncoding.EncodeToString([]byte(`{"id":"e1","notificationType":"Message","type":"OrderCreated"}`)) + `"}}`)

func TestDecide(t *testing.T) {
	cases := []struct {
		name   string
		result *service.DeliveryResult
		err    error
		want   Decision
	}{
		{"accepted", &service.DeliveryResult{Outcome: service.OutcomeAccepted}, nil, Ack},
		{"duplicate", &service.DeliveryResult{Outcome: service.OutcomeDuplicate}, nil, Ack},
		{"filtered", &service.DeliveryResult{Outcome: service.OutcomeFiltered}, nil, Ack},
		{"registered", &service.DeliveryResult{Outcome: service.OutcomeRegistered}, nil, Requeue},
		{"internal", nil, errors.New("db down"), Requeue},
		{"conflict", nil, appErrors.NewPersistenceConflict("c", "k"), Requeue},
		{"validation", nil, appErrors.NewValidation("bad"), Drop},
		{"parsing", nil, appErrors.NewJSONParsing(errors.New("x")), Drop},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.result, tc.err))
		})
	}
}

func TestHandleDropsUndecodable(t *testing.T) {
	p := &MockProcessor{outcome: service.OutcomeAccepted}
	events := newEvents(p)

	assert.Equal(t, Drop, events.Handle(context.Background(), []byte(`{"message":{}}`)))
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, Ack, events.Handle(context.Background(), validBody))
	assert.Equal(t, 1, p.calls)
}

// --- In-memory queue ---

func TestInMemoryQueueRetries(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := NewInMemoryQueue(3, time.Millisecond, log)

	var attempts int32
	require.NoError(t, q.Subscribe("events", func(ctx context.Context, body []byte) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return ErrRequeue
		}
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), "events", validBody))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := NewInMemoryQueue(2, time.Millisecond, log)

	var attempts int32
	require.NoError(t, q.Subscribe("events", func(ctx context.Context, body []byte) error {
		atomic.AddInt32(&attempts, 1)
		return ErrRequeue
	}))
	require.NoError(t, q.Publish(context.Background(), "events", validBody))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestInMemoryQueueNoSubscribers(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := NewInMemoryQueue(1, time.Millisecond, log)
	assert.Error(t, q.Publish(context.Background(), "nobody", validBody))
}

func TestInMemoryQueueSurvivesCallerCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	q := NewInMemoryQueue(0, time.Millisecond, log)
	p := &MockProcessor{outcome: service.OutcomeAccepted}
	require.NoError(t, q.Subscribe("events", newEvents(p).HandleFunc()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, "events", validBody))
	cancel()
	q.Wait()
	assert.Equal(t, 1, p.calls)
}

// --- AMQP ---

type fakeAcknowledger struct {
	acks, nacks int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acks++; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	return nil
}
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type fakePublisher struct {
	published []amqp.Publishing
	err       error
}

func (f *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func newAMQP(p *MockProcessor) *AMQPConsumer {
	log, _ := test.NewNullLogger()
	return &AMQPConsumer{Queue: "notify_events", MaxRedeliveries: 2, Events: newEvents(p), Log: log}
}

func TestAMQPAcksProcessed(t *testing.T) {
	c := newAMQP(&MockProcessor{outcome: service.OutcomeAccepted})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	c.handleDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, Body: validBody})
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, pub.published)
}

func TestAMQPRepublishesWithCounter(t *testing.T) {
	c := newAMQP(&MockProcessor{outcome: service.OutcomeRegistered})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	c.handleDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, Body: validBody, Headers: amqp.Table{RedeliveryHeader: int32(1)}})
	require.Len(t, pub.published, 1)
	assert.Equal(t, int32(2), pub.published[0].Headers[RedeliveryHeader])
	assert.Equal(t, validBody, pub.published[0].Body)
	assert.Equal(t, 1, ack.acks)
}

func TestAMQPDropsAfterLimit(t *testing.T) {
	c := newAMQP(&MockProcessor{err: errors.New("db down")})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	c.handleDelivery(context.Background(), pub, amqp.Delivery{Acknowledger: ack, Body: validBody, Headers: amqp.Table{RedeliveryHeader: int64(2)}})
	assert.Empty(t, pub.published)
	assert.Equal(t, 1, ack.acks)
}

func TestAMQPNacksWhenRepublishFails(t *testing.T) {
	c := newAMQP(&MockProcessor{outcome: service.OutcomeRegistered})
	ack := &fakeAcknowledger{}

	c.handleDelivery(context.Background(), &fakePublisher{err: errors.New("channel closed")}, amqp.Delivery{Acknowledger: ack, Body: validBody})
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
}

// --- NATS ---

type fakeNATSMsg struct {
	acked, naked, termed bool
}

func (f *fakeNATSMsg) Ack(opts ...nats.AckOpt) error  { f.acked = true; return nil }
func (f *fakeNATSMsg) Nak(opts ...nats.AckOpt) error  { f.naked = true; return nil }
func (f *fakeNATSMsg) Term(opts ...nats.AckOpt) error { f.termed = true; return nil }

func TestNATSAckMapping(t *testing.T) {
	log, _ := test.NewNullLogger()
	cases := []struct {
		name string
		p    *MockProcessor
		body []byte
		want fakeNATSMsg
	}{
		{"ack", &MockProcessor{outcome: service.OutcomeAccepted}, validBody, fakeNATSMsg{acked: true}},
		{"nak", &MockProcessor{outcome: service.OutcomeRegistered}, validBody, fakeNATSMsg{naked: true}},
		{"term", &MockProcessor{}, []byte(`garbage`), fakeNATSMsg{termed: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &NATSConsumer{Events: newEvents(tc.p), Log: log}
			msg := &fakeNATSMsg{}
			c.handleMsg(context.Background(), tc.body, msg)
			assert.Equal(t, tc.want, *msg)
		})
	}
}
