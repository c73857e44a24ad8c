// internal/platform/subscriptions.go
package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
)

var _ repository.NativeSubscriptionStore = (*subscriptionStore)(nil)

type messageSubscription struct {
	ResourceTypeID string   `json:"resourceTypeId"`
	Types          []string `json:"types"`
}

type destination struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	Topic     string `json:"topic"`
}

type subscriptionDraft struct {
	Key         string                `json:"key"`
	Destination destination           `json:"destination"`
	Messages    []messageSubscription `json:"messages"`
}

type subscriptionResponse struct {
	ID       string                `json:"id"`
	Key      string                `json:"key"`
	Version  int64                 `json:"version"`
	Messages []messageSubscription `json:"messages"`
}

type updateAction struct {
	Action   string                `json:"action"`
	Messages []messageSubscription `json:"messages"`
}

type subscriptionUpdate struct {
	Version int64          `json:"version"`
	Actions []updateAction `json:"actions"`
}

func (r subscriptionResponse) toModel() *model.NativeSubscription {
	sub := &model.NativeSubscription{ID: r.ID, Key: r.Key, Version: r.Version, TriggerTypes: []string{}}
	for _, m := range r.Messages {
		sub.ResourceType = m.ResourceTypeID
		sub.TriggerTypes = append(sub.TriggerTypes, m.Types...)
	}
	return sub
}

type subscriptionStore struct {
	c *Client
}

// Subscriptions exposes the platform subscriptions endpoint as a native store.
func (c *Client) Subscriptions() repository.NativeSubscriptionStore {
	return &subscriptionStore{c: c}
}

func subscriptionPath(key string) string {
	return "/subscriptions/key=" + url.PathEscape(key)
}

func (s *subscriptionStore) Get(ctx context.Context, key string) (*model.NativeSubscription, error) {
	var resp subscriptionResponse
	status, err := s.c.do(ctx, http.MethodGet, subscriptionPath(key), nil, nil, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// Put creates the subscription or replaces its messages.
func (s *subscriptionStore) Put(ctx context.Context, key, resourceType string, triggerTypes []string) (*model.NativeSubscription, error) {
	messages := []messageSubscription{{ResourceTypeID: resourceType, Types: append([]string{}, triggerTypes...)}}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var resp subscriptionResponse
	if existing == nil {
		draft := subscriptionDraft{
			Key: key,
			Destination: destination{
				Type:      "GoogleCloudPubSub",
				ProjectID: s.c.PubSubProjectID,
				Topic:     s.c.PubSubTopic,
			},
			Messages: messages,
		}
		if _, err := s.c.do(ctx, http.MethodPost, "/subscriptions", nil, draft, &resp); err != nil {
			return nil, err
		}
		return resp.toModel(), nil
	}

	update := subscriptionUpdate{
		Version: existing.Version,
		Actions: []updateAction{{Action: "setMessages", Messages: messages}},
	}
	if _, err := s.c.do(ctx, http.MethodPost, subscriptionPath(key), nil, update, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

func (s *subscriptionStore) Delete(ctx context.Context, key string, version int64) error {
	q := url.Values{}
	q.Set("version", strconv.FormatInt(version, 10))
	_, err := s.c.do(ctx, http.MethodDelete, subscriptionPath(key), q, nil, nil)
	return err
}
