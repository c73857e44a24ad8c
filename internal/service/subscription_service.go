// internal/service/subscription_service.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
)

type SubscriptionRequest struct {
	Channel      model.Channel `json:"channel" validate:"required,oneof=email sms whatsapp"`
	ResourceType string        `json:"resourceType" validate:"required"`
	TriggerType  string        `json:"triggerType" validate:"required"`
}

// SubscriptionChange is the mirror after a change. NativeErr carries a failed
// native write, which does not fail the change itself.
type SubscriptionChange struct {
	Registry  *model.SubscriptionRegistry `json:"registry"`
	NativeErr error                       `json:"-"`
}

type ReconcileReport struct {
	Created   []string          `json:"created"`
	Updated   []string          `json:"updated"`
	Deleted   []string          `json:"deleted"`
	Unchanged []string          `json:"unchanged"`
	Errors    map[string]string `json:"errors"`
}

// SubscriptionService keeps the subscription mirror and the native push
// subscriptions on the platform in step.
type SubscriptionService struct {
	Subscriptions repository.SubscriptionRepositoryInterface
	Native        repository.NativeSubscriptionStore
	NativePrefix  string
	MaxAttempts   int
	Log           logrus.FieldLogger
	Now           func() time.Time
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *SubscriptionService) attempts() int {
	if s.MaxAttempts < 1 {
		return 3
	}
	return s.MaxAttempts
}

func (s *SubscriptionService) prefix() string {
	if s.NativePrefix == "" {
		return "notify"
	}
	return s.NativePrefix
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context) (*model.SubscriptionRegistry, error) {
	reg, _, err := s.Subscriptions.Get(ctx)
	return reg, err
}

// AddSubscription registers a trigger for a channel and widens the native
// subscription of the resource type.
func (s *SubscriptionService) AddSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionChange, error) {
	if err := validate.Struct(req); err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	if !IsSupportedResourceType(req.ResourceType) {
		return nil, appErrors.NewInvalidResourceType(req.ResourceType)
	}
	at := s.now()
	return s.change(ctx, req, func(reg *model.SubscriptionRegistry) error {
		reg.Add(req.Channel, req.ResourceType, req.TriggerType, at)
		return nil
	})
}

// RemoveSubscription drops a trigger for a channel. The native subscription is
// deleted once no channel listens to the resource type.
func (s *SubscriptionService) RemoveSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionChange, error) {
	if err := validate.Struct(req); err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	return s.change(ctx, req, func(reg *model.SubscriptionRegistry) error {
		if _, ok := reg.Find(req.Channel, req.ResourceType); !ok {
			return appErrors.NewNotFound("No %s subscription for %s", req.Channel, req.ResourceType)
		}
		if !reg.Remove(req.Channel, req.ResourceType, req.TriggerType) {
			return appErrors.NewNotFound("Trigger %s is not subscribed for %s on %s", req.TriggerType, req.ResourceType, req.Channel)
		}
		return nil
	})
}

// change applies mutate to a fresh copy of the mirror and writes the mirror and
// the native subscription concurrently. The native subscription is written again
// when the saved mirror ends up with a different trigger union.
func (s *SubscriptionService) change(ctx context.Context, req SubscriptionRequest, mutate func(*model.SubscriptionRegistry) error) (*SubscriptionChange, error) {
	log := s.Log.WithFields(logrus.Fields{"channel": req.Channel, "resourceType": req.ResourceType, "triggerType": req.TriggerType})

	reg, version, err := s.Subscriptions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := mutate(reg); err != nil {
		return nil, err
	}
	union := reg.TriggerUnion(req.ResourceType)

	var (
		wg        sync.WaitGroup
		saved     *model.SubscriptionRegistry
		mirrorErr error
		nativeErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		saved, mirrorErr = s.saveMirror(ctx, reg, version, mutate)
	}()
	go func() {
		defer wg.Done()
		_, nativeErr = s.syncNative(ctx, req.ResourceType, union)
	}()
	wg.Wait()

	// a retried mirror write may have picked up other changes to this resource type
	if mirrorErr == nil {
		if final := saved.TriggerUnion(req.ResourceType); !sameTriggers(final, union) {
			_, nativeErr = s.syncNative(ctx, req.ResourceType, final)
		}
	}

	if nativeErr != nil {
		log.WithError(nativeErr).Error("Failed to update native subscription")
	}
	if mirrorErr != nil {
		log.WithError(mirrorErr).Error("Failed to save subscription registry")
		return nil, mirrorErr
	}
	log.Info("Subscription registry updated")
	return &SubscriptionChange{Registry: saved, NativeErr: nativeErr}, nil
}

// saveMirror writes reg at version, re-reading and re-applying mutate on a
// version conflict.
func (s *SubscriptionService) saveMirror(ctx context.Context, reg *model.SubscriptionRegistry, version int64, mutate func(*model.SubscriptionRegistry) error) (*model.SubscriptionRegistry, error) {
	for attempt := 1; ; attempt++ {
		_, err := s.Subscriptions.Save(ctx, reg, version)
		if err == nil {
			return reg, nil
		}
		if !appErrors.IsKind(err, appErrors.KindPersistenceConflict) || attempt >= s.attempts() {
			return nil, err
		}
		if reg, version, err = s.Subscriptions.Get(ctx); err != nil {
			return nil, err
		}
		if err := mutate(reg); err != nil {
			return nil, err
		}
	}
}

type nativeAction string

const (
	nativeCreated   nativeAction = "created"
	nativeUpdated   nativeAction = "updated"
	nativeDeleted   nativeAction = "deleted"
	nativeUnchanged nativeAction = "unchanged"
)

// syncNative converges the native subscription of resourceType to union.
func (s *SubscriptionService) syncNative(ctx context.Context, resourceType string, union []string) (nativeAction, error) {
	key := repository.NativeSubscriptionKey(s.prefix(), resourceType)
	existing, err := s.Native.Get(ctx, key)
	if err != nil {
		return "", err
	}

	if len(union) == 0 {
		if existing == nil {
			return nativeUnchanged, nil
		}
		if err := s.Native.Delete(ctx, key, existing.Version); err != nil {
			return "", err
		}
		return nativeDeleted, nil
	}

	if existing != nil && sameTriggers(existing.TriggerTypes, union) {
		return nativeUnchanged, nil
	}
	if _, err := s.Native.Put(ctx, key, resourceType, union); err != nil {
		return "", err
	}
	if existing == nil {
		return nativeCreated, nil
	}
	return nativeUpdated, nil
}

func sameTriggers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if !set[t] {
			return false
		}
	}
	return true
}

// Reconcile converges every native subscription to the trigger union in the
// mirror. It keeps going past individual failures and reports them.
func (s *SubscriptionService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	reg, _, err := s.Subscriptions.Get(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		Created:   []string{},
		Updated:   []string{},
		Deleted:   []string{},
		Unchanged: []string{},
		Errors:    map[string]string{},
	}
	for _, rt := range SupportedResourceTypes() {
		action, err := s.syncNative(ctx, rt, reg.TriggerUnion(rt))
		if err != nil {
			s.Log.WithError(err).WithField("resourceType", rt).Error("Failed to reconcile native subscription")
			report.Errors[rt] = err.Error()
			continue
		}
		switch action {
		case nativeCreated:
			report.Created = append(report.Created, rt)
		case nativeUpdated:
			report.Updated = append(report.Updated, rt)
		case nativeDeleted:
			report.Deleted = append(report.Deleted, rt)
		default:
			report.Unchanged = append(report.Unchanged, rt)
		}
	}

	s.Log.WithFields(logrus.Fields{
		"created": len(report.Created),
		"updated": len(report.Updated),
		"deleted": len(report.Deleted),
		"errors":  len(report.Errors),
	}).Info("Native subscriptions reconciled")
	return report, nil
}
