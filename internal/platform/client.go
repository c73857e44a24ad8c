// internal/platform/client.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
)

type Options struct {
	ProjectKey      string
	ClientID        string
	ClientSecret    string
	Scope           string
	AuthURL         string
	APIURL          string
	PubSubProjectID string
	PubSubTopic     string
	Timeout         time.Duration
}

// Client talks to the commerce platform HTTP API.
type Client struct {
	HTTP            *http.Client
	BaseURL         string
	ProjectKey      string
	PubSubProjectID string
	PubSubTopic     string
}

// NewClient returns a client authenticated with the client credentials grant.
// Token refreshes keep ctx's values but not its cancellation.
func NewClient(ctx context.Context, opts Options) *Client {
	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     strings.TrimRight(opts.AuthURL, "/") + "/oauth/token",
	}
	if opts.Scope != "" {
		cc.Scopes = strings.Fields(opts.Scope)
	}
	httpClient := cc.Client(context.WithoutCancel(ctx))
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	} else {
		httpClient.Timeout = 30 * time.Second
	}
	return &Client{
		HTTP:            httpClient,
		BaseURL:         strings.TrimRight(opts.APIURL, "/"),
		ProjectKey:      opts.ProjectKey,
		PubSubProjectID: opts.PubSubProjectID,
		PubSubTopic:     opts.PubSubTopic,
	}
}

// ErrorResponse is the platform's error body.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + "/" + c.ProjectKey + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends the request and decodes a 2xx body into out. It returns the HTTP
// status so callers can treat 404 as absence.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, appErrors.NewInternal("failed to encode request body", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, appErrors.NewInternal(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= 300 {
		return resp.StatusCode, errorFromResponse(resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, appErrors.NewInternal("failed to decode platform response", err)
		}
	}
	return resp.StatusCode, nil
}

func errorFromResponse(status int, raw []byte) error {
	var er ErrorResponse
	_ = json.Unmarshal(raw, &er)
	if er.Message == "" {
		er.Message = http.StatusText(status)
	}
	if status == http.StatusNotFound {
		return appErrors.New(appErrors.KindNotFound, status, er.Message, nil)
	}
	if status == http.StatusConflict {
		return appErrors.New(appErrors.KindPersistenceConflict, status, er.Message, nil)
	}
	return appErrors.New(appErrors.KindInternal, status, er.Message, nil)
}

// GetResource fetches /{endpoint}/{id}. A missing resource returns nil.
func (c *Client) GetResource(ctx context.Context, endpoint, id string) (map[string]any, error) {
	var out map[string]any
	status, err := c.do(ctx, http.MethodGet, "/"+endpoint+"/"+url.PathEscape(id), nil, nil, &out)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
