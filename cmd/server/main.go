// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/app"
	"github.com/unclebandit/notify-event/internal/config"
	"github.com/unclebandit/notify-event/internal/controller"
	"github.com/unclebandit/notify-event/internal/handler"
	"github.com/unclebandit/notify-event/internal/logger"
	"github.com/unclebandit/notify-event/internal/queue"
)

const asyncTopic = "notify_events"

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

	q := queue.NewInMemoryQueue(cfg.AsyncMaxRetries, cfg.AsyncRetryBackoff, log)
	events := &queue.EventConsumer{Delivery: c.Delivery, Log: log}
	if err := q.Subscribe(asyncTopic, events.HandleFunc()); err != nil {
		log.WithError(err).Fatal("❌ Failed to start async subscriber")
	}

	r := newRouter(c, q)
	srv := &http.Server{Addr: cfg.Address, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Infof("🚀 Server running on %s", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("❌ Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("⚠️ Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	q.Wait()
	log.Info("✅ Server stopped")
}

func newRouter(c *app.Container, q queue.Queue) http.Handler {
	eventController := &controller.EventController{Delivery: c.Delivery, Log: c.Log}
	subscriptionController := &controller.SubscriptionController{Subscriptions: c.SubscriptionSvc}
	logHandler := &handler.LogHandler{Logs: c.Logs, Log: c.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(c.Metrics.Middleware)

	// Push intake
	r.Post("/", eventController.HandlePush)
	r.Post("/events", eventController.HandlePush)
	r.Post("/events/async", asyncIntake(q, c.Log))

	// Subscription routes
	r.Get("/subscriptions", subscriptionController.ListSubscriptions)
	r.Post("/subscriptions", subscriptionController.AddSubscription)
	r.Delete("/subscriptions", subscriptionController.RemoveSubscription)
	r.Post("/subscriptions/reconcile", subscriptionController.Reconcile)

	// Log routes
	r.Get("/logs", logHandler.ListLogsHandler)
	r.Get("/logs/{messageID}", logHandler.GetLogHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	r.Handle("/metrics", c.Metrics.Handler())
	return r
}

// asyncIntake accepts a push body and processes it in the background,
// retrying until the message is completed.
func asyncIntake(q queue.Queue, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := q.Publish(r.Context(), asyncTopic, body); err != nil {
			log.WithError(err).Error("Failed to enqueue event")
			http.Error(w, "Failed to enqueue event", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "Message queued")
	}
}
