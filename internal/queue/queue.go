package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes one message body. A non-nil error triggers a retry.
type Handler func(ctx context.Context, body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue is an in-process queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
	Log        logrus.FieldLogger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(maxRetries int, backoff time.Duration, log logrus.FieldLogger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		MaxRetries: maxRetries,
		Backoff:    backoff,
		Log:        log,
	}
}

// job wraps a message body with retry info
type job struct {
	Topic      string
	Body       []byte
	RetryCount int
	MaxRetries int
}

// Publish hands the body to every subscriber of topic. Processing outlives
// the caller's cancellation.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, body []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		j := job{Topic: topic, Body: body, MaxRetries: q.MaxRetries}
		q.wg.Add(1)
		go func(h Handler) {
			defer q.wg.Done()
			q.processJob(ctx, h, j)
		}(handler)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, j job) {
	for {
		err := handler(ctx, j.Body)
		if err == nil {
			return // ACK
		}

		j.RetryCount++
		log := q.Log.WithFields(logrus.Fields{"topic": j.Topic, "attempt": j.RetryCount, "maxRetries": j.MaxRetries})
		if j.RetryCount > j.MaxRetries {
			log.WithError(err).Error("Job permanently failed")
			return // No requeue
		}
		log.WithError(err).Warn("Job failed, retrying")

		// Linear backoff before retry
		time.Sleep(time.Duration(j.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
