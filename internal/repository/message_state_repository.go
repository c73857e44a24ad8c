// internal/repository/message_state_repository.go
package repository

import (
	"context"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// MessageStateRepositoryInterface tracks which event ids have been seen.
type MessageStateRepositoryInterface interface {
	// Register inserts an in_progress record if none exists and reports whether it did.
	Register(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.MessageState, error)
	Complete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// CustomObjectMessageStateRepository stores one custom object per event id.
type CustomObjectMessageStateRepository struct {
	Store       CustomObjectRepositoryInterface
	Container   string
	MaxAttempts int
	Now         func() time.Time
}

var _ MessageStateRepositoryInterface = (*CustomObjectMessageStateRepository)(nil)

func (r *CustomObjectMessageStateRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *CustomObjectMessageStateRepository) attempts() int {
	if r.MaxAttempts < 1 {
		return 3
	}
	return r.MaxAttempts
}

// Register relies on the create-only put so two racing deliveries cannot both win.
func (r *CustomObjectMessageStateRepository) Register(ctx context.Context, id string) (bool, error) {
	state := model.MessageState{State: model.StateInProgress, CreatedAt: r.now()}
	if _, err := r.Store.Put(ctx, r.Container, id, 0, state); err != nil {
		if appErrors.IsKind(err, appErrors.KindPersistenceConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *CustomObjectMessageStateRepository) Get(ctx context.Context, id string) (*model.MessageState, error) {
	obj, err := r.Store.Get(ctx, r.Container, id)
	if err != nil || obj == nil {
		return nil, err
	}
	state := &model.MessageState{}
	if err := json.Unmarshal(obj.Value, state); err != nil {
		return nil, appErrors.NewInternal("failed to decode message state", err)
	}
	return state, nil
}

func (r *CustomObjectMessageStateRepository) Complete(ctx context.Context, id string) error {
	for attempt := 0; attempt < r.attempts(); attempt++ {
		obj, err := r.Store.Get(ctx, r.Container, id)
		if err != nil {
			return err
		}

		state := model.MessageState{State: model.StateCompleted, CreatedAt: r.now()}
		var version int64
		if obj != nil {
			var current model.MessageState
			if err := json.Unmarshal(obj.Value, &current); err == nil {
				if current.State == model.StateCompleted {
					return nil
				}
				state.CreatedAt = current.CreatedAt
			}
			version = obj.Version
		}

		_, err = r.Store.Put(ctx, r.Container, id, version, state)
		if err == nil {
			return nil
		}
		if !appErrors.IsKind(err, appErrors.KindPersistenceConflict) {
			return err
		}
	}
	return appErrors.NewPersistenceConflict(r.Container, id)
}

func (r *CustomObjectMessageStateRepository) DeleteAll(ctx context.Context) (int, error) {
	return DeleteContainer(ctx, r.Store, r.Container)
}

func (r *CustomObjectMessageStateRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	objs, err := ListAll(ctx, r.Store, r.Container)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objs {
		var state model.MessageState
		created := obj.CreatedAt
		if err := json.Unmarshal(obj.Value, &state); err == nil && !state.CreatedAt.IsZero() {
			created = state.CreatedAt
		}
		if !created.Before(cutoff) {
			continue
		}
		if err := r.Store.Delete(ctx, r.Container, obj.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
