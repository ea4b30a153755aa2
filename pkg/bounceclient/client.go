package bounceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bounce-hq/bounce/internal/domain"
	"github.com/bounce-hq/bounce/pkg/httpclient"
)

const (
	// DefaultBaseURL points at a local development backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	healthPath  = "/health"
	bouncesPath = "/bounces"
)

type callState string

const (
	stateBuilding  callState = "building"
	stateSent      callState = "sent"
	stateSucceeded callState = "succeeded"
	stateFailed    callState = "failed"
)

// EncodeFunc serializes a request payload.
type EncodeFunc func(v any) ([]byte, error)

// Client talks to the bounce backend. It holds only immutable configuration and
// is safe for concurrent use.
type Client struct {
	baseURL      string
	http         httpclient.Client
	log          Logger
	encode       EncodeFunc
	strictHealth bool
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithEncoder replaces the JSON encoder used for request bodies.
func WithEncoder(fn EncodeFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.encode = fn
		}
	}
}

// WithStrictHealth makes CheckHealth fail with KindServer on a non-2xx status.
func WithStrictHealth() Option {
	return func(c *Client) { c.strictHealth = true }
}

// New builds a client for baseURL (DefaultBaseURL when empty). A nil transport
// falls back to a resty client with the transport default timeout.
func New(baseURL string, transport httpclient.Client, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if transport == nil {
		transport = httpclient.NewRestyClient(0)
	}

	c := &Client{
		baseURL: baseURL,
		http:    transport,
		log:     noopLogger{},
		encode:  json.Marshal,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckHealth fetches <base>/health and returns the body as a string map.
// Unless WithStrictHealth is set, the HTTP status is not inspected.
func (c *Client) CheckHealth(ctx context.Context) (map[string]string, error) {
	url := c.baseURL + healthPath
	c.trace("health", stateBuilding, map[string]any{})
	c.trace("health", stateSent, map[string]any{"url": url})

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, c.fail("health", transportError(err))
	}
	if c.strictHealth && !isSuccess(resp.StatusCode()) {
		return nil, c.fail("health", serverError(resp.StatusCode()))
	}

	status, err := decodeHealth(resp.Body())
	if err != nil {
		return nil, c.fail("health", decodeError(err))
	}

	c.trace("health", stateSucceeded, map[string]any{"status_code": resp.StatusCode()})
	return status, nil
}

// CreateBounce builds a Bounce and POSTs it to <base>/bounces. A nil friend
// omits the friend key entirely. Any 2xx status is success and the body is ignored.
func (c *Client) CreateBounce(ctx context.Context, title string, date time.Time, friend *string) error {
	return c.Submit(ctx, domain.New(title, date, friend))
}

// Submit POSTs an already built Bounce with the same semantics as CreateBounce.
func (c *Client) Submit(ctx context.Context, bounce domain.Bounce) error {
	c.trace("create_bounce", stateBuilding, map[string]any{"bounce_id": bounce.ID().String()})

	payload, err := bounce.WirePayload()
	if err != nil {
		return c.fail("create_bounce", encodeError(err))
	}
	body, err := c.encode(payload)
	if err != nil {
		return c.fail("create_bounce", encodeError(err))
	}

	url := c.baseURL + bouncesPath
	c.trace("create_bounce", stateSent, map[string]any{
		"bounce_id": bounce.ID().String(),
		"url":       url,
	})

	resp, err := c.http.Post(ctx, url, map[string]string{"Content-Type": "application/json"}, body)
	if err != nil {
		return c.fail("create_bounce", transportError(err))
	}
	if !isSuccess(resp.StatusCode()) {
		return c.fail("create_bounce", serverError(resp.StatusCode()))
	}

	c.trace("create_bounce", stateSucceeded, map[string]any{
		"bounce_id":   bounce.ID().String(),
		"status_code": resp.StatusCode(),
	})
	return nil
}

// CheckHealthAsync runs CheckHealth without blocking the caller.
func (c *Client) CheckHealthAsync(ctx context.Context) <-chan Result[map[string]string] {
	return async(func() (map[string]string, error) {
		return c.CheckHealth(ctx)
	})
}

// CreateBounceAsync runs CreateBounce without blocking the caller.
func (c *Client) CreateBounceAsync(ctx context.Context, title string, date time.Time, friend *string) <-chan Result[struct{}] {
	return async(func() (struct{}, error) {
		return struct{}{}, c.CreateBounce(ctx, title, date, friend)
	})
}

func decodeHealth(body []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func (c *Client) trace(op string, state callState, fields map[string]any) {
	fields["op"] = op
	fields["state"] = string(state)
	c.log.DebugObj("bounce api call", "bounce_call", fields)
}

func (c *Client) fail(op string, err *ClientError) error {
	fields := map[string]any{
		"op":    op,
		"state": string(stateFailed),
		"kind":  err.Kind.String(),
	}
	if err.Kind == KindServer {
		fields["status_code"] = err.StatusCode
	}
	if err.Err != nil {
		fields["error"] = err.Err.Error()
	}
	c.log.WarnObj("bounce api call failed", "bounce_call", fields)
	return err
}
