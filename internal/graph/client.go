package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"instagram-mcp/internal/creds"
	"instagram-mcp/pkg/logging"
)

const defaultBaseURL = "https://graph.facebook.com"

// TokenSource supplies a bearer token for a call category. It is satisfied
// by creds.Manager; per-call lookup means every request observes the
// freshest credential without the dispatcher holding token state.
type TokenSource interface {
	Token(ctx context.Context, category creds.Category) (string, error)
}

// Client issues single Graph API requests. It holds no token state and
// implements no retry; each call fetches its token, executes exactly one
// HTTP exchange, and classifies the outcome.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	tokens     TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL overrides the Graph API base URL, mainly for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a dispatcher bound to a token source.
func NewClient(tokens TokenSource, apiVersion string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request against the given Graph path.
func (c *Client) Get(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error) {
	return c.dispatch(ctx, category, http.MethodGet, path, params)
}

// Post issues a POST request with form-encoded parameters.
func (c *Client) Post(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error) {
	return c.dispatch(ctx, category, http.MethodPost, path, params)
}

// Delete issues a DELETE request against the given Graph path.
func (c *Client) Delete(ctx context.Context, category creds.Category, path string, params url.Values) (json.RawMessage, error) {
	return c.dispatch(ctx, category, http.MethodDelete, path, params)
}

func (c *Client) dispatch(ctx context.Context, category creds.Category, method, path string, params url.Values) (json.RawMessage, error) {
	token, err := c.tokens.Token(ctx, category)
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, strings.TrimLeft(path, "/"))

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope graphErrorEnvelope
		_ = json.Unmarshal(body, &envelope)
		apiErr := classify(resp.StatusCode, envelope)
		logging.Warn("Graph", "request failed: %s %s status=%d kind=%s code=%d",
			method, path, resp.StatusCode, apiErr.Kind, apiErr.Code)
		return nil, apiErr
	}

	logging.Debug("Graph", "%s %s status=%d", method, path, resp.StatusCode)
	return json.RawMessage(body), nil
}
