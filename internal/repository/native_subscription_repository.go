// internal/repository/native_subscription_repository.go
package repository

import (
	"context"
	"encoding/json"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// NativeSubscriptionStore manages push subscriptions on the event source.
// Get returns nil when the subscription does not exist.
type NativeSubscriptionStore interface {
	Get(ctx context.Context, key string) (*model.NativeSubscription, error)
	Put(ctx context.Context, key, resourceType string, triggerTypes []string) (*model.NativeSubscription, error)
	Delete(ctx context.Context, key string, version int64) error
}

// NativeSubscriptionKey is the key of the native subscription for resourceType.
func NativeSubscriptionKey(prefix, resourceType string) string {
	return prefix + "-" + resourceType + "-subscription"
}

// CustomObjectNativeSubscriptionStore keeps native subscriptions as custom
// objects when no platform is configured.
type CustomObjectNativeSubscriptionStore struct {
	Store     CustomObjectRepositoryInterface
	Container string
}

var _ NativeSubscriptionStore = (*CustomObjectNativeSubscriptionStore)(nil)

func (s *CustomObjectNativeSubscriptionStore) Get(ctx context.Context, key string) (*model.NativeSubscription, error) {
	obj, err := s.Store.Get(ctx, s.Container, key)
	if err != nil || obj == nil {
		return nil, err
	}
	sub := &model.NativeSubscription{}
	if err := json.Unmarshal(obj.Value, sub); err != nil {
		return nil, appErrors.NewInternal("failed to decode native subscription", err)
	}
	sub.Key = key
	sub.Version = obj.Version
	return sub, nil
}

// Put creates the subscription or replaces its trigger list.
func (s *CustomObjectNativeSubscriptionStore) Put(ctx context.Context, key, resourceType string, triggerTypes []string) (*model.NativeSubscription, error) {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var version int64
	if existing != nil {
		version = existing.Version
	}
	sub := &model.NativeSubscription{Key: key, ResourceType: resourceType, TriggerTypes: append([]string{}, triggerTypes...)}
	obj, err := s.Store.Put(ctx, s.Container, key, version, sub)
	if err != nil {
		return nil, err
	}
	sub.Version = obj.Version
	return sub, nil
}

func (s *CustomObjectNativeSubscriptionStore) Delete(ctx context.Context, key string, version int64) error {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return appErrors.NewNotFound("subscription %s not found", key)
	}
	if version != 0 && existing.Version != version {
		return appErrors.NewPersistenceConflict(s.Container, key)
	}
	return s.Store.Delete(ctx, s.Container, key)
}
