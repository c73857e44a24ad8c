package app_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/notify-event/internal/app"
	"github.com/unclebandit/notify-event/internal/config"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
	"github.com/unclebandit/notify-event/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreBackend:    config.StoreBackendMemory,
		StateBackend:    config.StateBackendStore,
		ContainerPrefix: "notify",
		CASMaxAttempts:  3,
		DispatchMode:    config.DispatchImmediate,
		SMTPHost:        "smtp.example.com",
		SMTPPort:        587,
	}
}

func TestNewContainerMemory(t *testing.T) {
	log, _ := test.NewNullLogger()
	c, err := app.NewContainer(context.Background(), memoryConfig(), log)
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &repository.MemoryCustomObjectRepository{}, c.Store)
	assert.IsType(t, &repository.CustomObjectMessageStateRepository{}, c.States)
	assert.IsType(t, &repository.CustomObjectNativeSubscriptionStore{}, c.Native)
	assert.Nil(t, c.Platform)

	_, hasEmail := c.Dispatchers[model.ChannelEmail]
	_, hasSMS := c.Dispatchers[model.ChannelSMS]
	assert.True(t, hasEmail)
	assert.False(t, hasSMS)
}

func TestContainerEndToEndBootstrap(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	c, err := app.NewContainer(ctx, memoryConfig(), log)
	require.NoError(t, err)

	_, err = c.Maintenance.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = c.SubscriptionSvc.AddSubscription(ctx, service.SubscriptionRequest{Channel: model.ChannelEmail, ResourceType: "order", TriggerType: "OrderCreated"})
	require.NoError(t, err)

	sub, err := c.Native.Get(ctx, "notify-order-subscription")
	require.NoError(t, err)
	require.NotNil(t, sub)

	// channels start disabled, so nothing is dispatched
	env := &model.Envelope{}
	require.NoError(t, env.UnmarshalJSON([]byte(`{"id":"e1","notificationType":"Message","type":"OrderCreated","resource":{"typeId":"order","id":"o1"}}`)))
	res, err := c.Delivery.ProcessEvent(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAccepted, res.Outcome)
	assert.Empty(t, res.Channels)
}

func TestNewContainerRedisStates(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.StateBackend = config.StateBackendRedis
	cfg.RedisAddr = mr.Addr()

	log, _ := test.NewNullLogger()
	c, err := app.NewContainer(context.Background(), cfg, log)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Redis)
	created, err := c.States.Register(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, mr.Exists("notify-messageState:e1"))
}

func TestNewContainerPlatformRequiresCredentials(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = config.StoreBackendPlatform

	log, _ := test.NewNullLogger()
	_, err := app.NewContainer(context.Background(), cfg, log)
	assert.Error(t, err)
}
