// internal/app/container.go
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/config"
	"github.com/unclebandit/notify-event/internal/db"
	"github.com/unclebandit/notify-event/internal/metrics"
	"github.com/unclebandit/notify-event/internal/platform"
	"github.com/unclebandit/notify-event/internal/repository"
	"github.com/unclebandit/notify-event/internal/sender"
	"github.com/unclebandit/notify-event/internal/service"
)

// Container wires every component from Config. All three commands build one.
type Container struct {
	Config  *config.Config
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics

	DB       *sql.DB
	Redis    *redis.Client
	Platform *platform.Client

	Containers    repository.Containers
	Store         repository.CustomObjectRepositoryInterface
	States        repository.MessageStateRepositoryInterface
	Subscriptions repository.SubscriptionRepositoryInterface
	Settings      repository.ChannelSettingsRepositoryInterface
	Native        repository.NativeSubscriptionStore
	Dispatchers   sender.Registry

	Logs            *service.ProcessLogService
	Delivery        *service.DeliveryService
	SubscriptionSvc *service.SubscriptionService
	Maintenance     *service.MaintenanceService
	Sweeper         *service.StateSweeper
}

func NewContainer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Container, error) {
	c := &Container{
		Config:     cfg,
		Log:        log,
		Metrics:    metrics.New(),
		Containers: repository.ContainersWithPrefix(cfg.ContainerPrefix),
	}

	if cfg.PlatformConfigured() {
		c.Platform = platform.NewClient(ctx, platform.Options{
			ProjectKey:      cfg.ProjectKey,
			ClientID:        cfg.ClientID,
			ClientSecret:    cfg.ClientSecret,
			Scope:           cfg.Scope,
			AuthURL:         cfg.AuthURL,
			APIURL:          cfg.APIURL,
			PubSubProjectID: cfg.PubSubProjectID,
			PubSubTopic:     cfg.PubSubTopic,
		})
	}

	if err := c.initStore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initStates(ctx); err != nil {
		c.Close()
		return nil, err
	}

	cs := c.Containers
	c.Subscriptions = &repository.SubscriptionRepository{Store: c.Store, Container: cs.Subscriptions, Key: cs.SubscriptionsKey}
	c.Settings = &repository.ChannelSettingsRepository{Store: c.Store, Container: cs.Channels, Key: cs.ChannelsKey}
	c.Dispatchers = c.buildDispatchers()

	c.Logs = &service.ProcessLogService{
		Store:       c.Store,
		Container:   cs.MessageLogs,
		MaxAttempts: cfg.CASMaxAttempts,
		Log:         log,
	}

	resolver := &service.ResourceResolver{Log: log}
	if c.Platform != nil {
		resolver.Fetcher = c.Platform
	}

	c.Delivery = &service.DeliveryService{
		States:        c.States,
		Subscriptions: c.Subscriptions,
		Settings:      c.Settings,
		Resolver:      resolver,
		Logs:          c.Logs,
		Dispatchers:   c.Dispatchers,
		Mode:          cfg.DispatchMode,
		Metrics:       c.Metrics,
		Log:           log,
	}

	c.SubscriptionSvc = &service.SubscriptionService{
		Subscriptions: c.Subscriptions,
		Native:        c.Native,
		NativePrefix:  cfg.ContainerPrefix,
		MaxAttempts:   cfg.CASMaxAttempts,
		Log:           log,
	}

	c.Maintenance = &service.MaintenanceService{
		Store:         c.Store,
		Containers:    cs,
		Subscriptions: c.Subscriptions,
		States:        c.States,
		Logs:          c.Logs,
		Native:        c.Native,
		NativePrefix:  cfg.ContainerPrefix,
		Log:           log,
	}

	c.Sweeper = service.NewStateSweeper(c.States, cfg.StateRetention, cfg.StateSweepInterval, log)
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	cfg := c.Config
	switch cfg.StoreBackend {
	case config.StoreBackendPlatform:
		if c.Platform == nil {
			return fmt.Errorf("platform store requires platform credentials")
		}
		c.Store = c.Platform
		c.Native = c.Platform.Subscriptions()
		return nil
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		c.DB = conn
		if err := db.EnsureSchema(ctx, conn); err != nil {
			return err
		}
		c.Store = &repository.PostgresCustomObjectRepository{DB: conn}
	default:
		c.Store = repository.NewMemoryCustomObjectRepository()
	}

	if c.Platform != nil {
		c.Native = c.Platform.Subscriptions()
	} else {
		c.Native = &repository.CustomObjectNativeSubscriptionStore{Store: c.Store, Container: c.Containers.NativeSubscriptions}
	}
	return nil
}

func (c *Container) initStates(ctx context.Context) error {
	cfg := c.Config
	if cfg.StateBackend == config.StateBackendRedis {
		client, err := db.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		c.Redis = client
		c.States = &repository.RedisMessageStateRepository{Client: client, Prefix: c.Containers.MessageState, TTL: cfg.StateTTL}
		return nil
	}
	c.States = &repository.CustomObjectMessageStateRepository{
		Store:       c.Store,
		Container:   c.Containers.MessageState,
		MaxAttempts: cfg.CASMaxAttempts,
	}
	return nil
}

// buildDispatchers registers a dispatcher per channel whose provider is configured.
func (c *Container) buildDispatchers() sender.Registry {
	cfg := c.Config
	var dispatchers []sender.Dispatcher

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilio := sender.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
		dispatchers = append(dispatchers,
			sender.NewSMSDispatcher(twilio, cfg.SMSSenderSecret, c.Log),
			sender.NewWhatsAppDispatcher(twilio, cfg.WhatsAppSenderSecret, c.Log),
		)
	} else {
		c.Log.Warn("Twilio credentials missing, SMS and WhatsApp disabled")
	}

	if cfg.SMTPHost != "" {
		smtp := sender.NewSMTPGateway(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
		dispatchers = append(dispatchers, sender.NewEmailDispatcher(smtp, cfg.EmailSenderSecret, c.Log))
	} else {
		c.Log.Warn("SMTP host missing, email disabled")
	}

	return sender.NewRegistry(dispatchers...)
}

// Close releases connections opened by the container.
func (c *Container) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}
