// internal/service/process_log_service.go
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
)

// ProcessLogService keeps the append-only delivery history per message and channel.
type ProcessLogService struct {
	Store       repository.CustomObjectRepositoryInterface
	Container   string
	MaxAttempts int
	Log         logrus.FieldLogger
	Now         func() time.Time
}

type LogPage struct {
	Data       []*model.MessageLogView `json:"data"`
	Pagination map[string]int          `json:"pagination"`
}

func (s *ProcessLogService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *ProcessLogService) attempts() int {
	if s.MaxAttempts < 1 {
		return 3
	}
	return s.MaxAttempts
}

// AddProcessLog records one delivery outcome for messageID on channel.
func (s *ProcessLogService) AddProcessLog(ctx context.Context, messageID string, channel model.Channel, recipient string, outcome model.DeliveryOutcome, env *model.Envelope) error {
	entry := model.ProcessLog{
		Message:    outcome.Message,
		StatusCode: outcome.StatusCode,
		CreatedAt:  s.now(),
	}
	return s.AppendLog(ctx, messageID, string(channel), recipient, outcome.IsSent, entry, env)
}

// AppendLog appends entry to the channel's history and overwrites the latest
// attempt fields. Concurrent writers are reconciled by re-reading on a version
// conflict, up to MaxAttempts times.
func (s *ProcessLogService) AppendLog(ctx context.Context, messageID, channel, recipient string, isSent bool, entry model.ProcessLog, env *model.Envelope) error {
	encoded, err := EncodeJSONBase64(env)
	if err != nil {
		return appErrors.NewInternal("failed to encode message payload", err)
	}

	for attempt := 1; attempt <= s.attempts(); attempt++ {
		obj, err := s.Store.Get(ctx, s.Container, messageID)
		if err != nil {
			return err
		}

		record := &model.MessageLog{Channels: map[string]*model.ChannelLog{}}
		var version int64
		if obj != nil {
			if err := json.Unmarshal(obj.Value, record); err != nil {
				return appErrors.NewInternal("failed to decode message log", err)
			}
			if record.Channels == nil {
				record.Channels = map[string]*model.ChannelLog{}
			}
			version = obj.Version
		}

		chLog, ok := record.Channels[channel]
		if !ok || chLog == nil {
			chLog = &model.ChannelLog{ProcessLogs: []model.ProcessLog{}}
			record.Channels[channel] = chLog
		}
		chLog.ProcessLogs = append(chLog.ProcessLogs, entry)
		chLog.IsSent = isSent
		chLog.LastProcessedDate = entry.CreatedAt
		chLog.Recipient = recipient
		record.Message = encoded

		_, err = s.Store.Put(ctx, s.Container, messageID, version, record)
		if err == nil {
			return nil
		}
		if !appErrors.IsKind(err, appErrors.KindPersistenceConflict) {
			return err
		}
		s.Log.WithFields(logrus.Fields{"messageId": messageID, "channel": channel, "attempt": attempt}).
			Debug("Process log version conflict, retrying")
	}
	return appErrors.NewPersistenceConflict(s.Container, messageID)
}

// GetLog returns the decoded log of one message.
func (s *ProcessLogService) GetLog(ctx context.Context, messageID string) (*model.MessageLogView, error) {
	obj, err := s.Store.Get(ctx, s.Container, messageID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, appErrors.NewNotFound("No logs found for message %s", messageID)
	}
	return s.view(obj)
}

// ListLogs returns logs newest first.
func (s *ProcessLogService) ListLogs(ctx context.Context, page, pageSize int) (*LogPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	result, err := s.Store.List(ctx, s.Container, offset, pageSize)
	if err != nil {
		return nil, err
	}

	views := make([]*model.MessageLogView, 0, len(result.Results))
	for _, obj := range result.Results {
		v, err := s.view(obj)
		if err != nil {
			s.Log.WithError(err).WithField("messageId", obj.Key).Warn("Skipping unreadable message log")
			continue
		}
		views = append(views, v)
	}

	total := result.Total
	return &LogPage{
		Data: views,
		Pagination: map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	}, nil
}

func (s *ProcessLogService) view(obj *model.CustomObject) (*model.MessageLogView, error) {
	record := &model.MessageLog{}
	if err := json.Unmarshal(obj.Value, record); err != nil {
		return nil, appErrors.NewInternal("failed to decode message log", err)
	}
	v := &model.MessageLogView{
		MessageID:      obj.Key,
		Version:        obj.Version,
		Channels:       record.Channels,
		CreatedAt:      obj.CreatedAt,
		LastModifiedAt: obj.LastModifiedAt,
	}
	if v.Channels == nil {
		v.Channels = map[string]*model.ChannelLog{}
	}
	if record.Message != "" {
		msg, err := DecodeMessage(record.Message)
		if err != nil {
			return nil, err
		}
		v.Message = msg
	}
	return v, nil
}

// DecodeMessage reverses the base64 JSON encoding of a stored payload.
func DecodeMessage(encoded string) (map[string]any, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, appErrors.NewJSONParsing(err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, appErrors.NewJSONParsing(err)
	}
	return out, nil
}

func (s *ProcessLogService) DeleteAll(ctx context.Context) (int, error) {
	return repository.DeleteContainer(ctx, s.Store, s.Container)
}
