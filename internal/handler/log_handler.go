// internal/handler/log_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/service"
)

// LogReader is the read side of the process log store.
type LogReader interface {
	GetLog(ctx context.Context, messageID string) (*model.MessageLogView, error)
	ListLogs(ctx context.Context, page, pageSize int) (*service.LogPage, error)
}

// LogHandler holds the dependencies for log browsing handlers
type LogHandler struct {
	Logs LogReader
	Log  logrus.FieldLogger
}

// ListLogsHandler returns a paginated list of message logs, newest first
func (h *LogHandler) ListLogsHandler(w http.ResponseWriter, r *http.Request) {
	page := 1
	pageSize := 20

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && ps > 0 {
		pageSize = ps
	}

	result, err := h.Logs.ListLogs(r.Context(), page, pageSize)
	if err != nil {
		h.fail(w, err)
		return
	}

	response := map[string]interface{}{
		"data":       result.Data,
		"pagination": result.Pagination,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetLogHandler returns the delivery history of one message
func (h *LogHandler) GetLogHandler(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if messageID == "" {
		h.fail(w, appErrors.NewValidation("missing message id"))
		return
	}

	view, err := h.Logs.GetLog(r.Context(), messageID)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (h *LogHandler) fail(w http.ResponseWriter, err error) {
	appErr := appErrors.Normalize(err)
	if appErr.StatusCode >= 500 {
		h.Log.WithError(err).Error("Failed to fetch message logs")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(appErr.Body())
}
