// internal/controller/subscription_controller.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/service"
)

type SubscriptionManager interface {
	ListSubscriptions(ctx context.Context) (*model.SubscriptionRegistry, error)
	AddSubscription(ctx context.Context, req service.SubscriptionRequest) (*service.SubscriptionChange, error)
	RemoveSubscription(ctx context.Context, req service.SubscriptionRequest) (*service.SubscriptionChange, error)
	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

type SubscriptionController struct {
	Subscriptions SubscriptionManager
}

func (c *SubscriptionController) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	reg, err := c.Subscriptions.ListSubscriptions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (c *SubscriptionController) AddSubscription(w http.ResponseWriter, r *http.Request) {
	c.applyChange(w, r, c.Subscriptions.AddSubscription)
}

func (c *SubscriptionController) RemoveSubscription(w http.ResponseWriter, r *http.Request) {
	c.applyChange(w, r, c.Subscriptions.RemoveSubscription)
}

func (c *SubscriptionController) applyChange(w http.ResponseWriter, r *http.Request, apply func(context.Context, service.SubscriptionRequest) (*service.SubscriptionChange, error)) {
	var req service.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	change, err := apply(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"registry": change.Registry}
	if change.NativeErr != nil {
		resp["nativeError"] = appErrors.Normalize(change.NativeErr).Message
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *SubscriptionController) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := c.Subscriptions.Reconcile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
