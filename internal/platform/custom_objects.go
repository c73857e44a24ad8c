// internal/platform/custom_objects.go
package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
	"github.com/unclebandit/notify-event/internal/repository"
)

var _ repository.CustomObjectRepositoryInterface = (*Client)(nil)

type customObjectDraft struct {
	Container string `json:"container"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
	Version   *int64 `json:"version,omitempty"`
}

func objectPath(container, key string) string {
	return "/custom-objects/" + url.PathEscape(container) + "/" + url.PathEscape(key)
}

func (c *Client) Get(ctx context.Context, container, key string) (*model.CustomObject, error) {
	obj := &model.CustomObject{}
	status, err := c.do(ctx, http.MethodGet, objectPath(container, key), nil, nil, obj)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Put sends the version as given; version 0 makes the platform reject existing keys.
func (c *Client) Put(ctx context.Context, container, key string, version int64, value any) (*model.CustomObject, error) {
	v := version
	draft := customObjectDraft{Container: container, Key: key, Value: value, Version: &v}
	obj := &model.CustomObject{}
	_, err := c.do(ctx, http.MethodPost, "/custom-objects", nil, draft, obj)
	if err != nil {
		if appErrors.IsKind(err, appErrors.KindPersistenceConflict) {
			return nil, appErrors.NewPersistenceConflict(container, key)
		}
		return nil, err
	}
	if len(obj.Value) == 0 {
		b, _ := json.Marshal(value)
		obj.Value = b
	}
	return obj, nil
}

func (c *Client) Delete(ctx context.Context, container, key string) error {
	status, err := c.do(ctx, http.MethodDelete, objectPath(container, key), nil, nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) List(ctx context.Context, container string, offset, limit int) (*model.CustomObjectPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort", "createdAt desc")

	page := &model.CustomObjectPage{}
	if _, err := c.do(ctx, http.MethodGet, "/custom-objects/"+url.PathEscape(container), q, nil, page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []*model.CustomObject{}
	}
	return page, nil
}
