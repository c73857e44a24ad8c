// internal/repository/redis_message_state_repository.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// RedisMessageStateRepository uses SETNX as the dedup gate.
type RedisMessageStateRepository struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Now    func() time.Time
}

var _ MessageStateRepositoryInterface = (*RedisMessageStateRepository)(nil)

func (r *RedisMessageStateRepository) key(id string) string {
	return r.Prefix + ":" + id
}

func (r *RedisMessageStateRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *RedisMessageStateRepository) Register(ctx context.Context, id string) (bool, error) {
	b, err := json.Marshal(model.MessageState{State: model.StateInProgress, CreatedAt: r.now()})
	if err != nil {
		return false, err
	}
	return r.Client.SetNX(ctx, r.key(id), b, r.TTL).Result()
}

func (r *RedisMessageStateRepository) Get(ctx context.Context, id string) (*model.MessageState, error) {
	b, err := r.Client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	state := &model.MessageState{}
	if err := json.Unmarshal(b, state); err != nil {
		return nil, appErrors.NewInternal("failed to decode message state", err)
	}
	return state, nil
}

func (r *RedisMessageStateRepository) Complete(ctx context.Context, id string) error {
	state := model.MessageState{State: model.StateCompleted, CreatedAt: r.now()}
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current != nil {
		if current.State == model.StateCompleted {
			return nil
		}
		state.CreatedAt = current.CreatedAt
	}
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, r.key(id), b, r.TTL).Err()
}

func (r *RedisMessageStateRepository) scanKeys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := r.Client.Scan(ctx, 0, r.Prefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (r *RedisMessageStateRepository) DeleteAll(ctx context.Context) (int, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	n, err := r.Client.Del(ctx, keys...).Result()
	return int(n), err
}

func (r *RedisMessageStateRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, k := range keys {
		b, err := r.Client.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return deleted, err
		}
		var state model.MessageState
		if err := json.Unmarshal(b, &state); err != nil || !state.CreatedAt.Before(cutoff) {
			continue
		}
		if err := r.Client.Del(ctx, k).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
