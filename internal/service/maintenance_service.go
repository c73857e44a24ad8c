// internal/service/maintenance_service.go
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
)

// Deleter removes every record it owns.
type Deleter interface {
	DeleteAll(ctx context.Context) (int, error)
}

// MaintenanceService runs the install and uninstall actions of the connector.
type MaintenanceService struct {
	Store         repository.CustomObjectRepositoryInterface
	Containers    repository.Containers
	Subscriptions repository.SubscriptionRepositoryInterface
	States        Deleter
	Logs          Deleter
	Native        repository.NativeSubscriptionStore
	NativePrefix  string
	Log           logrus.FieldLogger
}

// defaultTriggerCatalog seeds the trigger types offered per resource type.
func defaultTriggerCatalog() *model.TriggerCatalog {
	return &model.TriggerCatalog{ResourceTypes: map[string][]string{
		"order":         {"OrderCreated", "OrderStateChanged", "OrderShipmentStateChanged", "OrderPaymentStateChanged", "DeliveryAdded", "ParcelAddedToDelivery"},
		"customer":      {"CustomerCreated", "CustomerEmailVerified", "CustomerPasswordUpdated", "CustomerEmailTokenCreated", "CustomerPasswordTokenCreated"},
		"payment":       {"PaymentCreated", "PaymentTransactionAdded", "PaymentTransactionStateChanged"},
		"product":       {"ProductCreated", "ProductPublished", "ProductUnpublished", "ProductDeleted"},
		"quote":         {"QuoteCreated", "QuoteStateChanged"},
		"quote-request": {"QuoteRequestCreated", "QuoteRequestStateChanged"},
		"review":        {"ReviewCreated", "ReviewStateTransition"},
		"business-unit": {"BusinessUnitCreated", "BusinessUnitAssociateAdded"},
	}}
}

// BootstrapReport names the objects created and those that already existed.
type BootstrapReport struct {
	Created []string `json:"created"`
	Existed []string `json:"existed"`
}

// Bootstrap creates the channel settings, subscription registry and trigger
// catalog objects if they are missing. Existing objects are left untouched.
func (s *MaintenanceService) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	c := s.Containers
	objects := []struct {
		container, key string
		value          any
	}{
		{c.Channels, c.ChannelsKey, model.DefaultChannelSettings()},
		{c.Subscriptions, c.SubscriptionsKey, model.NewSubscriptionRegistry()},
		{c.Triggers, c.TriggersKey, defaultTriggerCatalog()},
	}

	report := &BootstrapReport{Created: []string{}, Existed: []string{}}
	for _, o := range objects {
		_, err := s.Store.Put(ctx, o.container, o.key, 0, o.value)
		switch {
		case err == nil:
			report.Created = append(report.Created, o.container)
		case appErrors.IsKind(err, appErrors.KindPersistenceConflict):
			report.Existed = append(report.Existed, o.container)
		default:
			return report, err
		}
	}
	s.Log.WithFields(logrus.Fields{"created": report.Created, "existed": report.Existed}).Info("Notify objects ready")
	return report, nil
}

// RemoveNativeSubscriptions deletes the native subscription of every resource
// type present in the registry. Failures are logged and skipped.
func (s *MaintenanceService) RemoveNativeSubscriptions(ctx context.Context) ([]string, error) {
	reg, _, err := s.Subscriptions.Get(ctx)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	prefix := s.NativePrefix
	if prefix == "" {
		prefix = "notify"
	}
	for _, rt := range reg.ResourceTypes() {
		key := repository.NativeSubscriptionKey(prefix, rt)
		if err := s.removeNative(ctx, key); err != nil {
			s.Log.WithError(err).Errorf("Failed to unsubscribe from %s", rt)
			continue
		}
		removed = append(removed, rt)
	}
	return removed, nil
}

func (s *MaintenanceService) removeNative(ctx context.Context, key string) error {
	sub, err := s.Native.Get(ctx, key)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	return s.Native.Delete(ctx, key, sub.Version)
}

// DeleteAllObjects removes the three configuration objects.
func (s *MaintenanceService) DeleteAllObjects(ctx context.Context) error {
	c := s.Containers
	for _, ck := range [][2]string{
		{c.Channels, c.ChannelsKey},
		{c.Subscriptions, c.SubscriptionsKey},
		{c.Triggers, c.TriggersKey},
	} {
		if err := s.Store.Delete(ctx, ck[0], ck[1]); err != nil {
			return err
		}
	}
	s.Log.Info("Deleted notify configuration objects")
	return nil
}

func (s *MaintenanceService) DeleteAllMessageState(ctx context.Context) (int, error) {
	n, err := s.States.DeleteAll(ctx)
	if err != nil {
		return n, err
	}
	s.Log.WithField("deleted", n).Info("Deleted message states")
	return n, nil
}

func (s *MaintenanceService) DeleteAllMessageLogs(ctx context.Context) (int, error) {
	n, err := s.Logs.DeleteAll(ctx)
	if err != nil {
		return n, err
	}
	s.Log.WithField("deleted", n).Info("Deleted message logs")
	return n, nil
}
