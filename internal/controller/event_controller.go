// internal/controller/event_controller.go
package controller

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/service"
)

const maxPushBody = 1 << 20

// EventProcessor runs one decoded notification.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, env *model.Envelope) (*service.DeliveryResult, error)
}

type EventController struct {
	Delivery EventProcessor
	Log      logrus.FieldLogger
}

// HandlePush is the push endpoint. The status code tells the transport whether
// to redeliver; the body is a plain message.
func (c *EventController) HandlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		c.respondError(w, appErrors.NewValidation("Unable to read request body"))
		return
	}

	env, err := service.DecodePushBody(body)
	if err != nil {
		c.respondError(w, err)
		return
	}

	result, err := c.Delivery.ProcessEvent(r.Context(), env)
	if err != nil {
		c.respondError(w, err)
		return
	}

	w.Header().Set("X-Trace-Id", result.TraceID)
	writeText(w, result.Outcome.StatusCode(), result.Outcome.Message())
}

func (c *EventController) respondError(w http.ResponseWriter, err error) {
	appErr := appErrors.Normalize(err)
	entry := c.Log.WithFields(logrus.Fields{"statusCode": appErr.StatusCode, "kind": appErr.Kind.String()})
	if appErr.StatusCode >= 500 {
		entry.WithError(err).Error("Event processing failed")
	} else {
		entry.Warn(appErr.Message)
	}
	writeText(w, appErr.StatusCode, appErr.Message)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}
