package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bounce-hq/bounce/pkg/httpclient"
)

// httpPublisher POSTs the event JSON to a webhook. The bounce id travels in
// the X-Bounce-ID header so receivers can drop redeliveries.
type httpPublisher struct {
	sink
	url     string
	headers map[string]string
	client  httpclient.Client
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("sink %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &httpPublisher{
		sink:    newSink(cfg, log),
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  httpclient.NewRestyClient(timeout),
	}, nil
}

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	body, _, err := h.message(evt)
	if err != nil {
		return err
	}

	headers := make(map[string]string, len(h.headers)+2)
	for k, v := range h.headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	headers["X-Bounce-ID"] = evt.BounceID

	resp, err := h.client.Post(ctx, h.url, headers, body)
	if err != nil {
		return h.failed(evt, fmt.Errorf("http request: %w", err))
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return h.failed(evt, fmt.Errorf("http response status %d: %s", code, bodySnippet(resp.Body())))
	}
	h.delivered(evt, map[string]any{"status_code": resp.StatusCode()})
	return nil
}

func bodySnippet(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
