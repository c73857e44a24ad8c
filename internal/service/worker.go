package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StateExpirer defines the method the sweeper needs
type StateExpirer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// StateSweeper drops message states older than Retention every Interval
type StateSweeper struct {
	States    StateExpirer
	Retention time.Duration
	Interval  time.Duration
	Log       logrus.FieldLogger
	Now       func() time.Time
}

// Constructor
func NewStateSweeper(states StateExpirer, retention, interval time.Duration, log logrus.FieldLogger) *StateSweeper {
	return &StateSweeper{
		States:    states,
		Retention: retention,
		Interval:  interval,
		Log:       log,
	}
}

// SweepOnce runs a single pass and returns how many states were removed.
func (w *StateSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	n, err := w.States.DeleteOlderThan(ctx, now.Add(-w.Retention))
	if err != nil {
		w.Log.WithError(err).Error("State sweep failed")
		return n, err
	}
	if n > 0 {
		w.Log.WithField("deleted", n).Info("Expired message states removed")
	}
	return n, nil
}

// Start sweeps on every tick until ctx is cancelled.
func (w *StateSweeper) Start(ctx context.Context) {
	if w.Retention <= 0 || w.Interval <= 0 {
		w.Log.Info("State sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.SweepOnce(ctx)
		}
	}
}
