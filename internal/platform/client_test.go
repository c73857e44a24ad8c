package platform_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/platform"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// fakePlatform answers with canned responses keyed by "METHOD path".
type fakePlatform struct {
	mu        sync.Mutex
	requests  []recorded
	responses map[string]func(w http.ResponseWriter)
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	respond, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"statusCode": 404, "message": "not found"})
		return
	}
	respond(w)
}

func (f *fakePlatform) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakePlatform) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded{}, f.requests...)
}

func jsonResponse(status int, body any) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func newClient(t *testing.T, fake *fakePlatform) *platform.Client {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return &platform.Client{
		HTTP:            srv.Client(),
		BaseURL:         srv.URL,
		ProjectKey:      "proj",
		PubSubProjectID: "gcp-project",
		PubSubTopic:     "notify-topic",
	}
}

func TestNewClientRefreshesTokenAfterCancel(t *testing.T) {
	fake := &fakePlatform{responses: map[string]func(http.ResponseWriter){
		"POST /oauth/token":   jsonResponse(200, map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 3600}),
		"GET /proj/orders/o1": jsonResponse(200, map[string]any{"id": "o1"}),
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	c := platform.NewClient(ctx, platform.Options{
		ProjectKey:   "proj",
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      srv.URL,
		APIURL:       srv.URL,
	})
	cancel()

	res, err := c.GetResource(context.Background(), "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", res["id"])
	assert.Equal(t, "POST", fake.all()[0].Method)
}

func TestGetResource(t *testing.T) {
	fake := &fakePlatform{responses: map[string]func(http.ResponseWriter){
		"GET /proj/orders/o1": jsonResponse(200, map[string]any{"id": "o1", "orderNumber": "1001"}),
		"GET /proj/orders/o2": jsonResponse(500, map[string]any{"statusCode": 500, "message": "boom"}),
	}}
	c := newClient(t, fake)

	res, err := c.GetResource(context.Background(), "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, "1001", res["orderNumber"])

	res, err = c.GetResource(context.Background(), "orders", "missing")
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = c.GetResource(context.Background(), "orders", "o2")
	require.Error(t, err)
	assert.Equal(t, 500, appErrors.Normalize(err).StatusCode)
	assert.Equal(t, "boom", appErrors.Normalize(err).Message)
}

func TestCustomObjects(t *testing.T) {
	fake := &fakePlatform{responses: map[string]func(http.ResponseWriter){
		"GET /proj/custom-objects/notify-messageState/e1": jsonResponse(200, map[string]any{
			"container": "notify-messageState", "key": "e1", "version": 1, "value": map[string]any{"state": "in_progress"},
		}),
		"POST /proj/custom-objects": jsonResponse(201, map[string]any{
			"container": "notify-messageState", "key": "e2", "version": 1, "value": map[string]any{"state": "in_progress"},
		}),
		"GET /proj/custom-objects/notify-messagelogs": jsonResponse(200, map[string]any{
			"results": []any{map[string]any{"container": "notify-messagelogs", "key": "e1", "version": 3, "value": map[string]any{}}},
			"offset":  0, "total": 1,
		}),
		"DELETE /proj/custom-objects/notify-messageState/e1": jsonResponse(200, map[string]any{}),
	}}
	c := newClient(t, fake)
	ctx := context.Background()

	obj, err := c.Get(ctx, "notify-messageState", "e1")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, int64(1), obj.Version)
	assert.JSONEq(t, `{"state":"in_progress"}`, string(obj.Value))

	obj, err = c.Get(ctx, "notify-messageState", "absent")
	require.NoError(t, err)
	assert.Nil(t, obj)

	obj, err = c.Put(ctx, "notify-messageState", "e2", 0, map[string]string{"state": "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), obj.Version)

	page, err := c.List(ctx, "notify-messagelogs", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Results, 1)

	require.NoError(t, c.Delete(ctx, "notify-messageState", "e1"))
	require.NoError(t, c.Delete(ctx, "notify-messageState", "gone"))

	var put, list recorded
	for _, r := range fake.all() {
		if r.Method == http.MethodPost {
			put = r
		}
		if r.Path == "/proj/custom-objects/notify-messagelogs" {
			list = r
		}
	}
	assert.Equal(t, float64(0), put.Body["version"], "version 0 must be sent for create-only writes")
	assert.Equal(t, "e2", put.Body["key"])
	assert.Contains(t, list.Query, "sort=createdAt+desc")
	assert.Contains(t, list.Query, "limit=20")
}

func TestCustomObjectConflict(t *testing.T) {
	fake := &fakePlatform{responses: map[string]func(http.ResponseWriter){
		"POST /proj/custom-objects": jsonResponse(409, map[string]any{"statusCode": 409, "message": "Version mismatch"}),
	}}
	c := newClient(t, fake)

	_, err := c.Put(context.Background(), "notify-messagelogs", "e1", 2, map[string]string{})
	assert.True(t, appErrors.IsKind(err, appErrors.KindPersistenceConflict))
}

func TestSubscriptionsCreateUpdateDelete(t *testing.T) {
	fake := &fakePlatform{responses: map[string]func(http.ResponseWriter){
		"POST /proj/subscriptions": jsonResponse(201, map[string]any{
			"id": "s1", "key": "notify-order-subscription", "version": 1,
			"messages": []any{map[string]any{"resourceTypeId": "order", "types": []string{"OrderCreated"}}},
		}),
	}}
	c := newClient(t, fake)
	store := c.Subscriptions()
	ctx := context.Background()

	sub, err := store.Put(ctx, "notify-order-subscription", "order", []string{"OrderCreated"})
	require.NoError(t, err)
	assert.Equal(t, "/proj/subscriptions", fake.last().Path)
	assert.Equal(t, "order", sub.ResourceType)
	assert.Equal(t, []string{"OrderCreated"}, sub.TriggerTypes)

	draft := fake.last().Body
	dest := draft["destination"].(map[string]any)
	assert.Equal(t, "GoogleCloudPubSub", dest["type"])
	assert.Equal(t, "notify-topic", dest["topic"])

	// existing subscription is updated with setMessages
	fake.mu.Lock()
	fake.responses["GET /proj/subscriptions/key=notify-order-subscription"] = jsonResponse(200, map[string]any{
		"id": "s1", "key": "notify-order-subscription", "version": 1,
		"messages": []any{map[string]any{"resourceTypeId": "order", "types": []string{"OrderCreated"}}},
	})
	fake.responses["POST /proj/subscriptions/key=notify-order-subscription"] = jsonResponse(200, map[string]any{
		"id": "s1", "key": "notify-order-subscription", "version": 2,
		"messages": []any{map[string]any{"resourceTypeId": "order", "types": []string{"OrderCreated", "OrderStateChanged"}}},
	})
	fake.responses["DELETE /proj/subscriptions/key=notify-order-subscription"] = jsonResponse(200, map[string]any{})
	fake.mu.Unlock()

	sub, err = store.Put(ctx, "notify-order-subscription", "order", []string{"OrderCreated", "OrderStateChanged"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Version)

	update := fake.last().Body
	assert.Equal(t, float64(1), update["version"])
	action := update["actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "setMessages", action["action"])

	require.NoError(t, store.Delete(ctx, "notify-order-subscription", 2))
	assert.Equal(t, "version=2", fake.last().Query)

	err = store.Delete(ctx, "notify-customer-subscription", 1)
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))
}
