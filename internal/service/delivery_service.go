// internal/service/delivery_service.go
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
	"github.com/unclebandit/notify-event/internal/sender"
)

const (
	DispatchImmediate = "immediate"
	DispatchDeferred  = "deferred"
)

type Outcome string

const (
	OutcomeFiltered   Outcome = "filtered"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRegistered Outcome = "registered"
)

// StatusCode is the push response for the outcome. A registered but not
// completed message answers 400 so the transport redelivers it.
func (o Outcome) StatusCode() int {
	if o == OutcomeRegistered {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func (o Outcome) Message() string {
	switch o {
	case OutcomeFiltered:
		return "Event ignored"
	case OutcomeDuplicate:
		return "Message already processed"
	case OutcomeRegistered:
		return "Message registered, awaiting redelivery"
	default:
		return "Message processed"
	}
}

type ChannelResult struct {
	Channel    model.Channel `json:"channel"`
	Recipient  string        `json:"recipient"`
	IsSent     bool          `json:"isSent"`
	StatusCode int           `json:"statusCode"`
	Message    string        `json:"message"`
	LogError   string        `json:"logError,omitempty"`
}

type DeliveryResult struct {
	MessageID string          `json:"messageId"`
	TraceID   string          `json:"traceId"`
	Outcome   Outcome         `json:"outcome"`
	Channels  []ChannelResult `json:"channels"`
}

// Resolver fetches the data templates are rendered against.
type Resolver interface {
	Resolve(ctx context.Context, resourceType, resourceID string, env *model.Envelope) (map[string]any, error)
}

// ProcessLogger records delivery attempts.
type ProcessLogger interface {
	AddProcessLog(ctx context.Context, messageID string, channel model.Channel, recipient string, outcome model.DeliveryOutcome, env *model.Envelope) error
}

// DeliveryMetrics is notified of every event and channel outcome.
type DeliveryMetrics interface {
	ObserveEvent(outcome string)
	ObserveDelivery(channel, result string)
}

type DeliveryService struct {
	States        repository.MessageStateRepositoryInterface
	Subscriptions repository.SubscriptionRepositoryInterface
	Settings      repository.ChannelSettingsRepositoryInterface
	Resolver      Resolver
	Logs          ProcessLogger
	Dispatchers   sender.Registry
	Mode          string
	Metrics       DeliveryMetrics
	Log           logrus.FieldLogger
}

type channelTask struct {
	channel    model.Channel
	config     model.ChannelConfiguration
	dispatcher sender.Dispatcher
}

// ProcessEvent runs one notification through dedup and channel fan-out.
func (s *DeliveryService) ProcessEvent(ctx context.Context, env *model.Envelope) (*DeliveryResult, error) {
	if env == nil {
		return nil, appErrors.NewValidation("Missing event envelope")
	}
	result := &DeliveryResult{MessageID: env.ID, TraceID: uuid.NewString(), Channels: []ChannelResult{}}
	log := s.Log.WithFields(logrus.Fields{"messageId": env.ID, "traceId": result.TraceID, "type": env.Type})

	if env.NotificationType != model.NotificationTypeMessage {
		log.WithField("notificationType", env.NotificationType).Info("Ignoring non message notification")
		return s.finish(result, OutcomeFiltered), nil
	}
	if err := ValidateEnvelope(env); err != nil {
		return nil, err
	}

	log.Infof("Processing message %s", env.ID)

	if s.Mode == DispatchDeferred {
		return s.processDeferred(ctx, env, result, log)
	}

	// Subscriptions load before registering so a failure here leaves the
	// message unseen and the redelivery retries it.
	tasks, err := s.eligibleChannels(ctx, env)
	if err != nil {
		return nil, err
	}

	created, err := s.States.Register(ctx, env.ID)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Info("Message already seen, skipping")
		return s.finish(result, OutcomeDuplicate), nil
	}

	result.Channels = s.fanOut(ctx, env, tasks, log)

	if err := s.States.Complete(ctx, env.ID); err != nil {
		log.WithError(err).Error("Failed to mark message completed")
		return s.finish(result, OutcomeRegistered), nil
	}
	return s.finish(result, OutcomeAccepted), nil
}

// processDeferred registers on first sight and dispatches on the redelivery.
func (s *DeliveryService) processDeferred(ctx context.Context, env *model.Envelope, result *DeliveryResult, log logrus.FieldLogger) (*DeliveryResult, error) {
	state, err := s.States.Get(ctx, env.ID)
	if err != nil {
		return nil, err
	}

	if state == nil {
		created, err := s.States.Register(ctx, env.ID)
		if err != nil {
			return nil, err
		}
		if created {
			log.Info("Registered new message state")
			return s.finish(result, OutcomeRegistered), nil
		}
		// lost the race to a concurrent delivery
		if state, err = s.States.Get(ctx, env.ID); err != nil {
			return nil, err
		}
		if state == nil {
			return nil, appErrors.NewInternal("message state vanished during registration", nil)
		}
	}

	if state.State == model.StateCompleted {
		log.Info("Message already completed, skipping")
		return s.finish(result, OutcomeDuplicate), nil
	}

	tasks, err := s.eligibleChannels(ctx, env)
	if err != nil {
		return nil, err
	}
	result.Channels = s.fanOut(ctx, env, tasks, log)

	if err := s.States.Complete(ctx, env.ID); err != nil {
		log.WithError(err).Error("Failed to mark message completed")
		return s.finish(result, OutcomeRegistered), nil
	}
	return s.finish(result, OutcomeAccepted), nil
}

func (s *DeliveryService) finish(result *DeliveryResult, outcome Outcome) *DeliveryResult {
	result.Outcome = outcome
	if s.Metrics != nil {
		s.Metrics.ObserveEvent(string(outcome))
	}
	return result
}

// eligibleChannels lists the channels subscribed to the event's resource and
// trigger type that are enabled and have a dispatcher.
func (s *DeliveryService) eligibleChannels(ctx context.Context, env *model.Envelope) ([]channelTask, error) {
	resourceType := env.ResourceTypeID()
	if resourceType == "" {
		return nil, nil
	}

	registry, _, err := s.Subscriptions.Get(ctx)
	if err != nil {
		return nil, err
	}
	settings, _, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	tasks := []channelTask{}
	for _, ch := range model.Channels {
		if !registry.IsSubscribed(ch, resourceType, env.Type) {
			continue
		}
		cfg, ok := settings.Config(ch)
		if !ok || !cfg.IsEnabled {
			continue
		}
		d, ok := s.Dispatchers[ch]
		if !ok {
			s.Log.WithField("channel", ch).Warn("No dispatcher configured for subscribed channel")
			continue
		}
		tasks = append(tasks, channelTask{channel: ch, config: cfg, dispatcher: d})
	}
	return tasks, nil
}

func (s *DeliveryService) fanOut(ctx context.Context, env *model.Envelope, tasks []channelTask, log logrus.FieldLogger) []ChannelResult {
	results := make([]ChannelResult, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task channelTask) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("channel", task.channel).Errorf("Channel dispatch panicked: %v", r)
					results[i] = ChannelResult{
						Channel:    task.channel,
						StatusCode: http.StatusInternalServerError,
						Message:    fmt.Sprintf("dispatch panicked: %v", r),
					}
				}
			}()
			results[i] = s.deliver(ctx, env, task, log.WithField("channel", task.channel))
		}(i, task)
	}
	wg.Wait()
	return results
}

// deliver runs one channel attempt and always records it in the process log.
func (s *DeliveryService) deliver(ctx context.Context, env *model.Envelope, task channelTask, log logrus.FieldLogger) ChannelResult {
	res := ChannelResult{Channel: task.channel}
	outcome := s.attempt(ctx, env, task, &res)

	res.IsSent = outcome.IsSent
	res.StatusCode = outcome.StatusCode
	res.Message = outcome.Message

	if outcome.IsSent {
		log.WithField("recipient", res.Recipient).Info("Message delivered")
	} else {
		log.WithFields(logrus.Fields{"statusCode": outcome.StatusCode, "recipient": res.Recipient}).
			Errorf("Message delivery failed: %s", outcome.Message)
	}

	if err := s.Logs.AddProcessLog(ctx, env.ID, task.channel, res.Recipient, outcome, env); err != nil {
		log.WithError(err).Error("Failed to write process log")
		res.LogError = err.Error()
	}

	if s.Metrics != nil {
		result := "sent"
		if !outcome.IsSent {
			result = "failed"
		}
		s.Metrics.ObserveDelivery(string(task.channel), result)
	}
	return res
}

// attempt turns a panicking dispatch into a 500 failure so it is still logged.
func (s *DeliveryService) attempt(ctx context.Context, env *model.Envelope, task channelTask, res *ChannelResult) (outcome model.DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = failure(appErrors.NewInternal(fmt.Sprintf("dispatch panicked: %v", r), nil))
		}
	}()
	return s.send(ctx, env, task, res)
}

func (s *DeliveryService) send(ctx context.Context, env *model.Envelope, task channelTask, res *ChannelResult) model.DeliveryOutcome {
	tpl, ok := task.config.MessageBody[env.Type]
	if !ok {
		return failure(appErrors.NewNotFound("No message template configured for %s on %s", env.Type, task.channel))
	}

	data, err := s.Resolver.Resolve(ctx, env.ResourceTypeID(), env.Resource.ID, env)
	if err != nil {
		return failure(err)
	}

	res.Recipient = ResolveRecipient(tpl.SendToPath, data)
	if res.Recipient == "" {
		return failure(appErrors.NewValidation(fmt.Sprintf("No recipient found at %q", tpl.SendToPath)))
	}

	body := RenderTemplate(tpl.Message, data)
	subject := RenderTemplate(tpl.Subject, data)

	resp, err := task.dispatcher.SendMessage(ctx, body, task.config.Sender, res.Recipient, subject)
	if err != nil {
		return failure(err)
	}

	status := http.StatusOK
	if resp != nil && resp.StatusCode != 0 {
		status = resp.StatusCode
	}
	return model.DeliveryOutcome{IsSent: true, StatusCode: status, Message: model.MessageSentSuccessfully}
}

func failure(err error) model.DeliveryOutcome {
	appErr := appErrors.Normalize(err)
	return model.DeliveryOutcome{IsSent: false, StatusCode: appErr.StatusCode, Message: appErr.Message}
}
