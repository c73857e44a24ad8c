// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/app"
	"github.com/unclebandit/notify-event/internal/config"
	"github.com/unclebandit/notify-event/internal/logger"
	"github.com/unclebandit/notify-event/internal/queue"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ Invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to initialise services")
	}
	defer c.Close()

	consumer, err := newConsumer(cfg, c)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to build consumer")
	}

	go c.Sweeper.Start(ctx)

	log.WithField("transport", cfg.Transport).Info("🚀 Worker running, waiting for messages...")
	if err := consumer.Run(ctx); err != nil {
		log.WithError(err).Fatal("❌ Consumer stopped")
	}
	log.Info("✅ Worker stopped")
}

func newConsumer(cfg *config.Config, c *app.Container) (runner, error) {
	events := &queue.EventConsumer{Delivery: c.Delivery, Log: c.Log}
	switch cfg.Transport {
	case config.TransportAMQP:
		return &queue.AMQPConsumer{
			URL:             cfg.AMQPURL,
			Queue:           cfg.AMQPQueue,
			MaxRedeliveries: cfg.AMQPMaxRedeliveries,
			Events:          events,
			Log:             c.Log,
		}, nil
	case config.TransportNATS:
		return &queue.NATSConsumer{
			URL:        cfg.NATSURL,
			Stream:     cfg.NATSStream,
			Subject:    cfg.NATSSubject,
			Durable:    cfg.NATSDurable,
			MaxDeliver: cfg.NATSMaxDeliver,
			Events:     events,
			Log:        c.Log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
