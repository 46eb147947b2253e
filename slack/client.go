// Package slack implements the gateway API client: one-shot request/response
// calls, cursor-following paginated collection calls, the rtm.connect
// handshake, and authenticated file downloads. The client is stateless; the
// persistent socket lives in the bot package.
package slack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the production Web API endpoint prefix.
const DefaultBaseURL = "https://slack.com/api"

// pageLimit is the fixed page size for paginated collection calls.
const pageLimit = 300

// Client performs authenticated calls against the gateway Web API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint prefix. Used by tests to point the
// client at a local server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client holding the bearer credential. The credential is
// attached to every call automatically.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is one decoded API response body.
type Response map[string]any

// OK reports whether the API accepted the call.
func (r Response) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

// String returns the string value at key, or "" when missing or non-string.
func (r Response) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// nextCursor returns the pagination cursor from response_metadata, or ""
// when the response carries no further pages.
func (r Response) nextCursor() string {
	meta, _ := r["response_metadata"].(map[string]any)
	if meta == nil {
		return ""
	}
	cursor, _ := meta["next_cursor"].(string)
	return cursor
}

// Call sends params plus the bearer credential to the method-addressed
// endpoint and returns the decoded response body.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (Response, error) {
	form := url.Values{}
	form.Set("token", c.token)
	for k, v := range params {
		form.Set(k, fmt.Sprint(v))
	}

	endpoint := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Call", "request construction")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Call", method)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Call", method+" body read")
	}

	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Call", method+" body parsing")
	}

	return decoded, nil
}

// PaginatedCall issues repeated calls with the fixed page size, accumulating
// the array named by collectKey across pages. It follows the cursor returned
// in each response's metadata until absent. Pages are concatenated in
// server-returned order; no reordering or deduplication.
func (c *Client) PaginatedCall(
	ctx context.Context, method string, params map[string]any, collectKey string,
) ([]map[string]any, error) {
	paged := make(map[string]any, len(params)+2)
	for k, v := range params {
		paged[k] = v
	}
	paged["limit"] = pageLimit

	var collected []map[string]any
	for {
		resp, err := c.Call(ctx, method, paged)
		if err != nil {
			return nil, err
		}

		items, ok := resp[collectKey].([]any)
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("response field %q is not an array", collectKey),
				"Client", "PaginatedCall", method)
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.WrapInvalid(
					fmt.Errorf("response field %q contains a non-object element", collectKey),
					"Client", "PaginatedCall", method)
			}
			collected = append(collected, m)
		}

		cursor := resp.nextCursor()
		if cursor == "" {
			return collected, nil
		}
		paged["cursor"] = cursor
	}
}

// Download fetches a URL with the bearer credential attached, returning the
// body as text. Used for snippet attachment contents.
func (c *Client) Download(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", errors.WrapInvalid(err, "Client", "Download", "request construction")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.WrapTransient(err, "Client", "Download", fileURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WrapTransient(err, "Client", "Download", "body read")
	}
	return string(body), nil
}

// Session is the one-time descriptor returned by a successful handshake.
// The socket URL is single-use; a reconnect always requests a fresh one.
type Session struct {
	URL    string
	SelfID event.ID
}

// Connect performs the rtm.connect handshake. A rejected handshake
// (ok=false) is fatal to the run; a transport failure is transient and the
// caller may retry.
func (c *Client) Connect(ctx context.Context) (Session, error) {
	resp, err := c.Call(ctx, "rtm.connect", nil)
	if err != nil {
		return Session{}, err
	}
	if !resp.OK() {
		return Session{}, errors.WrapFatal(errors.ErrHandshakeFailed, "Client", "Connect", "rtm.connect")
	}

	session := Session{URL: resp.String("url")}
	if self, ok := resp["self"].(map[string]any); ok {
		if id, ok := self["id"].(string); ok {
			session.SelfID = event.ID(id)
		}
	}
	if session.URL == "" {
		return Session{}, errors.WrapFatal(
			fmt.Errorf("handshake response missing socket url"),
			"Client", "Connect", "rtm.connect")
	}

	c.logger.Debug("Handshake complete", "self_id", string(session.SelfID))
	return session, nil
}
