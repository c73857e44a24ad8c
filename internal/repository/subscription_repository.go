// internal/repository/subscription_repository.go
package repository

import (
	"context"
	"encoding/json"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// loadDocument decodes container/key into out and returns its version, 0 when absent.
func loadDocument(ctx context.Context, store CustomObjectRepositoryInterface, container, key string, out any) (int64, bool, error) {
	obj, err := store.Get(ctx, container, key)
	if err != nil {
		return 0, false, err
	}
	if obj == nil {
		return 0, false, nil
	}
	if err := json.Unmarshal(obj.Value, out); err != nil {
		return 0, false, appErrors.NewInternal("failed to decode "+container+"/"+key, err)
	}
	return obj.Version, true, nil
}

func saveDocument(ctx context.Context, store CustomObjectRepositoryInterface, container, key string, version int64, doc any) (int64, error) {
	obj, err := store.Put(ctx, container, key, version, doc)
	if err != nil {
		return 0, err
	}
	return obj.Version, nil
}

// ====================== Subscription registry ======================

type SubscriptionRepositoryInterface interface {
	Get(ctx context.Context) (*model.SubscriptionRegistry, int64, error)
	Save(ctx context.Context, reg *model.SubscriptionRegistry, version int64) (int64, error)
}

type SubscriptionRepository struct {
	Store     CustomObjectRepositoryInterface
	Container string
	Key       string
}

var _ SubscriptionRepositoryInterface = (*SubscriptionRepository)(nil)

// Get returns an empty registry at version 0 when none is stored.
func (r *SubscriptionRepository) Get(ctx context.Context) (*model.SubscriptionRegistry, int64, error) {
	reg := model.NewSubscriptionRegistry()
	version, _, err := loadDocument(ctx, r.Store, r.Container, r.Key, reg)
	if err != nil {
		return nil, 0, err
	}
	if reg.Channels == nil {
		reg.Channels = map[model.Channel][]model.Subscription{}
	}
	return reg, version, nil
}

func (r *SubscriptionRepository) Save(ctx context.Context, reg *model.SubscriptionRegistry, version int64) (int64, error) {
	return saveDocument(ctx, r.Store, r.Container, r.Key, version, reg)
}

// ====================== Channel settings ======================

type ChannelSettingsRepositoryInterface interface {
	Get(ctx context.Context) (*model.ChannelSettings, int64, error)
	Save(ctx context.Context, settings *model.ChannelSettings, version int64) (int64, error)
}

type ChannelSettingsRepository struct {
	Store     CustomObjectRepositoryInterface
	Container string
	Key       string
}

var _ ChannelSettingsRepositoryInterface = (*ChannelSettingsRepository)(nil)

// Get returns all channels disabled at version 0 when no settings are stored.
func (r *ChannelSettingsRepository) Get(ctx context.Context) (*model.ChannelSettings, int64, error) {
	settings := &model.ChannelSettings{}
	version, found, err := loadDocument(ctx, r.Store, r.Container, r.Key, settings)
	if err != nil {
		return nil, 0, err
	}
	if !found || settings.Channels == nil {
		return model.DefaultChannelSettings(), version, nil
	}
	return settings, version, nil
}

func (r *ChannelSettingsRepository) Save(ctx context.Context, settings *model.ChannelSettings, version int64) (int64, error) {
	return saveDocument(ctx, r.Store, r.Container, r.Key, version, settings)
}

// ====================== Trigger catalog ======================

type TriggerCatalogRepository struct {
	Store     CustomObjectRepositoryInterface
	Container string
	Key       string
}

func (r *TriggerCatalogRepository) Get(ctx context.Context) (*model.TriggerCatalog, int64, error) {
	catalog := &model.TriggerCatalog{ResourceTypes: map[string][]string{}}
	version, _, err := loadDocument(ctx, r.Store, r.Container, r.Key, catalog)
	if err != nil {
		return nil, 0, err
	}
	return catalog, version, nil
}

func (r *TriggerCatalogRepository) Save(ctx context.Context, catalog *model.TriggerCatalog, version int64) (int64, error) {
	return saveDocument(ctx, r.Store, r.Container, r.Key, version, catalog)
}
