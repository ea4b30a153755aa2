package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

// RecordedRequest is a request captured by FakeBackend.
type RecordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

// FakeBackend serves /health and /bounces the way the real backend does,
// with configurable responses.
type FakeBackend struct {
	mu           sync.Mutex
	server       *httptest.Server
	healthStatus int
	healthBody   string
	createStatus int
	createBody   string
	requests     []RecordedRequest
}

// NewFakeBackend starts a backend that reports healthy and accepts every bounce.
func NewFakeBackend() *FakeBackend {
	gin.SetMode(gin.TestMode)

	b := &FakeBackend{
		healthStatus: http.StatusOK,
		healthBody:   `{"status":"healthy","message":"API is running!"}`,
		createStatus: http.StatusCreated,
	}

	r := gin.New()
	r.GET("/health", b.handleHealth)
	r.POST("/bounces", b.handleCreate)
	b.server = httptest.NewServer(r)
	return b
}

// URL returns the base URL of the backend.
func (b *FakeBackend) URL() string { return b.server.URL }

// Close shuts the backend down.
func (b *FakeBackend) Close() { b.server.Close() }

// SetHealth sets the status and raw body returned by GET /health.
func (b *FakeBackend) SetHealth(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthStatus = status
	b.healthBody = body
}

// SetCreate sets the status and raw body returned by POST /bounces.
func (b *FakeBackend) SetCreate(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createStatus = status
	b.createBody = body
}

// Requests returns a copy of everything received so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// LastPayload decodes the body of the most recent POST /bounces.
func (b *FakeBackend) LastPayload() (map[string]any, error) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method != http.MethodPost {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(reqs[i].Body, &payload); err != nil {
			return nil, fmt.Errorf("decode recorded payload: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("no bounce was posted")
}

func (b *FakeBackend) record(c *gin.Context) {
	body, _ := c.GetRawData()
	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		ContentType: c.GetHeader("Content-Type"),
		Body:        body,
	})
	b.mu.Unlock()
}

func (b *FakeBackend) handleHealth(c *gin.Context) {
	b.record(c)
	b.mu.Lock()
	status, body := b.healthStatus, b.healthBody
	b.mu.Unlock()
	c.Data(status, "application/json", []byte(body))
}

func (b *FakeBackend) handleCreate(c *gin.Context) {
	b.record(c)
	b.mu.Lock()
	status, body := b.createStatus, b.createBody
	b.mu.Unlock()
	if body == "" {
		c.Status(status)
		return
	}
	c.Data(status, "application/json", []byte(body))
}
