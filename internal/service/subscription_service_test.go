package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
	"github.com/unclebandit/notify-event/internal/service"
)

// brokenNative fails every write.
type brokenNative struct {
	repository.NativeSubscriptionStore
}

func (b brokenNative) Put(ctx context.Context, key, resourceType string, triggerTypes []string) (*model.NativeSubscription, error) {
	return nil, errors.New("platform unavailable")
}

func newSubscriptionService(store repository.CustomObjectRepositoryInterface) (*service.SubscriptionService, repository.NativeSubscriptionStore) {
	log, _ := test.NewNullLogger()
	c := repository.DefaultContainers()
	native := &repository.CustomObjectNativeSubscriptionStore{Store: repository.NewMemoryCustomObjectRepository(), Container: c.NativeSubscriptions}
	return &service.SubscriptionService{
		Subscriptions: &repository.SubscriptionRepository{Store: store, Container: c.Subscriptions, Key: c.SubscriptionsKey},
		Native:        native,
		NativePrefix:  "notify",
		MaxAttempts:   3,
		Log:           log,
	}, native
}

func TestAddSubscriptionWidensNative(t *testing.T) {
	ctx := context.Background()
	svc, native := newSubscriptionService(repository.NewMemoryCustomObjectRepository())

	_, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)
	change, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelEmail, ResourceType: "order", TriggerType: "OrderStateChanged"})
	require.NoError(t, err)
	assert.NoError(t, change.NativeErr)
	assert.True(t, change.Registry.IsSubscribed(model.ChannelEmail, "order", "OrderStateChanged"))

	sub, err := native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, []string{"OrderStateChanged", "OrderCreated"}, sub.TriggerTypes)

	// idempotent
	_, err = svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)
	reg, err := svc.ListSubscriptions(ctx)
	require.NoError(t, err)
	s, _ := reg.Find(model.ChannelSMS, "order")
	assert.Len(t, s.Triggers, 1)
}

func TestRemoveSubscriptionDeletesNativeWhenUnionEmpty(t *testing.T) {
	ctx := context.Background()
	svc, native := newSubscriptionService(repository.NewMemoryCustomObjectRepository())

	sms := service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"}
	email := service.SubscriptionRequest{Channel: model.ChannelEmail, ResourceType: "order", TriggerType: "OrderCreated"}
	_, err := svc.AddSubscription(ctx, sms)
	require.NoError(t, err)
	_, err = svc.AddSubscription(ctx, email)
	require.NoError(t, err)

	_, err = svc.RemoveSubscription(ctx, sms)
	require.NoError(t, err)
	sub, err := native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	require.NotNil(t, sub, "email still listens")
	assert.Equal(t, []string{"OrderCreated"}, sub.TriggerTypes)

	change, err := svc.RemoveSubscription(ctx, email)
	require.NoError(t, err)
	_, ok := change.Registry.Find(model.ChannelEmail, "order")
	assert.False(t, ok)
	sub, err = native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestRemoveUnknownSubscription(t *testing.T) {
	svc, _ := newSubscriptionService(repository.NewMemoryCustomObjectRepository())

	_, err := svc.RemoveSubscription(context.Background(), service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))
}

func TestSubscriptionRequestValidation(t *testing.T) {
	svc, _ := newSubscriptionService(repository.NewMemoryCustomObjectRepository())
	ctx := context.Background()

	_, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: "pigeon", ResourceType: "order", TriggerType: "OrderCreated"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))

	_, err = svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "invalidType", TriggerType: "X"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindInvalidResourceType))
}

func TestNativeFailureIsReportedNotRaised(t *testing.T) {
	ctx := context.Background()
	svc, native := newSubscriptionService(repository.NewMemoryCustomObjectRepository())
	svc.Native = brokenNative{native}

	change, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)
	assert.Error(t, change.NativeErr)
	assert.True(t, change.Registry.IsSubscribed(model.ChannelSMS, "order", "OrderCreated"))

	// repaired once the platform recovers
	svc.Native = native
	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"order"}, report.Created)
	assert.Empty(t, report.Errors)

	sub, err := native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, []string{"OrderCreated"}, sub.TriggerTypes)
}

func TestReconcileDeletesOrphans(t *testing.T) {
	ctx := context.Background()
	svc, native := newSubscriptionService(repository.NewMemoryCustomObjectRepository())
	_, err := native.Put(ctx, "notify-customer-subscription", "customer", []string{"CustomerCreated"})
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer"}, report.Deleted)
	assert.Contains(t, report.Unchanged, "order")
}

// racingRegistryStore lets another writer save the registry just before the
// first registry write, so that write conflicts.
type racingRegistryStore struct {
	*repository.MemoryCustomObjectRepository
	raced bool
	race  func(ctx context.Context)
}

func (r *racingRegistryStore) Put(ctx context.Context, container, key string, version int64, value any) (*model.CustomObject, error) {
	if !r.raced {
		r.raced = true
		r.race(ctx)
	}
	return r.MemoryCustomObjectRepository.Put(ctx, container, key, version, value)
}

func TestNativeFollowsMirrorAfterConflictRetry(t *testing.T) {
	ctx := context.Background()
	c := repository.DefaultContainers()
	inner := repository.NewMemoryCustomObjectRepository()
	other := &repository.SubscriptionRepository{Store: inner, Container: c.Subscriptions, Key: c.SubscriptionsKey}
	store := &racingRegistryStore{MemoryCustomObjectRepository: inner, race: func(ctx context.Context) {
		reg, version, err := other.Get(ctx)
		if !assert.NoError(t, err) {
			return
		}
		reg.Add(model.ChannelEmail, "order", "OrderStateChanged", time.Now())
		_, err = other.Save(ctx, reg, version)
		assert.NoError(t, err)
	}}
	svc, native := newSubscriptionService(store)

	change, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)
	assert.NoError(t, change.NativeErr)
	assert.True(t, change.Registry.IsSubscribed(model.ChannelEmail, "order", "OrderStateChanged"))

	sub, err := native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.ElementsMatch(t, []string{"OrderCreated", "OrderStateChanged"}, sub.TriggerTypes)
}

func TestSubscriptionMirrorRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{MemoryCustomObjectRepository: repository.NewMemoryCustomObjectRepository()}
	svc, _ := newSubscriptionService(store)

	store.conflicts = 1
	change, err := svc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelSMS, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)
	assert.True(t, change.Registry.IsSubscribed(model.ChannelSMS, "order", "OrderCreated"))
}
