package bounceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bounce-hq/bounce/internal/domain"
	testbackend "github.com/bounce-hq/bounce/internal/testing"
	"github.com/bounce-hq/bounce/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResponse struct {
	status int
	body   []byte
}

func (r stubResponse) Body() []byte    { return r.body }
func (r stubResponse) StatusCode() int { return r.status }

// stubTransport answers every call with a fixed response or error.
type stubTransport struct {
	mu     sync.Mutex
	status int
	body   []byte
	err    error
	calls  int
}

func (s *stubTransport) respond() (httpclient.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return stubResponse{status: s.status, body: s.body}, nil
}

func (s *stubTransport) Get(context.Context, string, map[string]string) (httpclient.Response, error) {
	return s.respond()
}

func (s *stubTransport) Post(context.Context, string, map[string]string, []byte) (httpclient.Response, error) {
	return s.respond()
}

func strPtr(s string) *string { return &s }

func TestCreateBounceStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		success bool
	}{
		{status: 200, success: true},
		{status: 201, success: true},
		{status: 204, success: true},
		{status: 299, success: true},
		{status: 199, success: false},
		{status: 300, success: false},
		{status: 404, success: false},
		{status: 500, success: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			client := New("http://backend", &stubTransport{status: tt.status, body: []byte("ignored")})
			err := client.CreateBounce(context.Background(), "Coffee", time.Now(), nil)
			if tt.success {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrServer)
			status, ok := StatusOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestCreateBounceTransportFailure(t *testing.T) {
	cause := errors.New("connection refused")
	client := New("http://backend", &stubTransport{err: cause})

	err := client.CreateBounce(context.Background(), "Coffee", time.Now(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, kind)
}

func TestCreateBounceEncodeFailureSkipsRequest(t *testing.T) {
	transport := &stubTransport{status: http.StatusOK}
	client := New("http://backend", transport, WithEncoder(func(any) ([]byte, error) {
		return nil, errors.New("unsupported value")
	}))

	err := client.CreateBounce(context.Background(), "Coffee", time.Now(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncode)
	assert.Equal(t, 0, transport.calls, "no request may be sent after an encode failure")
}

func TestCreateBounceUnencodableDateSkipsRequest(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	client := New(backend.URL(), nil)

	for _, date := range []time.Time{
		time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(-1, time.January, 1, 0, 0, 0, 0, time.UTC),
	} {
		err := client.CreateBounce(context.Background(), "Coffee", date, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncode)
		assert.ErrorIs(t, err, domain.ErrUnencodable)
	}
	assert.Empty(t, backend.Requests(), "nothing may be sent for an unencodable bounce")
}

func TestCreateBounceInvalidUTF8IsEncodeError(t *testing.T) {
	transport := &stubTransport{status: http.StatusOK}
	client := New("http://backend", transport)

	err := client.CreateBounce(context.Background(), "caf\xe9", time.Now(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncode)
	assert.Equal(t, 0, transport.calls)
}

func TestCreateBounceSubMinuteOffsetSentAsUTC(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()

	date := time.Date(1930, time.June, 1, 12, 0, 0, 0, time.FixedZone("NST", 1*3600+19*60+32))
	require.NoError(t, New(backend.URL(), nil).CreateBounce(context.Background(), "Old times", date, nil))

	payload, err := backend.LastPayload()
	require.NoError(t, err)
	raw, ok := payload["date"].(string)
	require.True(t, ok)
	sent, err := domain.ParseWireDate(raw)
	require.NoError(t, err)
	assert.True(t, sent.Equal(date), "sent %s, want instant %s", raw, date)
}

func TestCreateBounceAgainstBackend(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()

	date := time.Date(2025, time.September, 9, 16, 0, 0, 0, time.FixedZone("NZST", 12*3600))
	client := New(backend.URL(), httpclient.NewRestyClient(5*time.Second))

	require.NoError(t, client.CreateBounce(context.Background(), "Driving Range", date, strPtr("Sam")))

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/bounces", reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)

	payload, err := backend.LastPayload()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":  "Driving Range",
		"date":   "2025-09-09T16:00:00+12:00",
		"friend": "Sam",
	}, payload)
}

func TestCreateBounceFriendKeyPresence(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	client := New(backend.URL()+"/", nil)

	require.NoError(t, client.CreateBounce(context.Background(), "No friend", time.Now(), nil))
	payload, err := backend.LastPayload()
	require.NoError(t, err)
	assert.NotContains(t, payload, "friend")

	require.NoError(t, client.CreateBounce(context.Background(), "Empty friend", time.Now(), strPtr("")))
	payload, err = backend.LastPayload()
	require.NoError(t, err)
	assert.Contains(t, payload, "friend")
	assert.Equal(t, "", payload["friend"])
}

func TestCreateBounceIgnoresSuccessBody(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	backend.SetCreate(http.StatusOK, "not json at all")

	client := New(backend.URL(), nil)
	require.NoError(t, client.CreateBounce(context.Background(), "Coffee", time.Now(), nil))
}

func TestCheckHealthReturnsMapping(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()

	client := New(backend.URL(), nil)
	status, err := client.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "healthy", "message": "API is running!"}, status)
}

func TestCheckHealthEmptyObject(t *testing.T) {
	for _, body := range []string{"{}", "", "null"} {
		client := New("http://backend", &stubTransport{status: http.StatusOK, body: []byte(body)})
		status, err := client.CheckHealth(context.Background())
		require.NoError(t, err, "body %q", body)
		require.NotNil(t, status)
		assert.Empty(t, status)
	}
}

func TestCheckHealthDecodeFailure(t *testing.T) {
	for _, body := range []string{"<html>", `["a"]`, `{"up":true}`} {
		client := New("http://backend", &stubTransport{status: http.StatusOK, body: []byte(body)})
		_, err := client.CheckHealth(context.Background())
		require.Error(t, err, "body %q", body)
		assert.ErrorIs(t, err, ErrDecode)
	}
}

func TestCheckHealthTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(url, nil)
	_, err := client.CheckHealth(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrDecode)
}

func TestCheckHealthIgnoresStatusByDefault(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	backend.SetHealth(http.StatusServiceUnavailable, `{"status":"degraded"}`)

	status, err := New(backend.URL(), nil).CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status["status"])

	_, err = New(backend.URL(), nil, WithStrictHealth()).CheckHealth(context.Background())
	require.Error(t, err)
	code, ok := StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestAsyncResolvesOnce(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	client := New(backend.URL(), nil)

	health := <-client.CheckHealthAsync(context.Background())
	require.True(t, health.OK())
	assert.Equal(t, "healthy", health.Value["status"])

	ch := client.CreateBounceAsync(context.Background(), "Coffee", time.Now(), nil)
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the single result")
}

func TestThenDeliversFailure(t *testing.T) {
	client := New("http://backend", &stubTransport{status: http.StatusNotFound})

	done := make(chan Result[struct{}], 1)
	Then(client.CreateBounceAsync(context.Background(), "Coffee", time.Now(), nil), func(r Result[struct{}]) {
		done <- r
	})

	select {
	case r := <-done:
		require.False(t, r.OK())
		assert.ErrorIs(t, r.Err, ErrServer)
	case <-time.After(2 * time.Second):
		t.Fatalf("continuation was not invoked")
	}
}

func TestConcurrentCallsShareClient(t *testing.T) {
	backend := testbackend.NewFakeBackend()
	defer backend.Close()
	client := New(backend.URL(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.CreateBounce(context.Background(), "Coffee", time.Now(), nil))
		}()
	}
	wg.Wait()
	assert.Len(t, backend.Requests(), 10)
}

func TestNewDefaultsBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("", nil).BaseURL())
	assert.Equal(t, "http://api.local", New(" http://api.local/ ", nil).BaseURL())
}

type recordingLogger struct {
	mu     sync.Mutex
	states []string
}

func (r *recordingLogger) record(obj interface{}) {
	fields, ok := obj.(map[string]any)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := fields["state"].(string); ok {
		r.states = append(r.states, st)
	}
}

func (r *recordingLogger) InfoObj(_, _ string, obj interface{})  { r.record(obj) }
func (r *recordingLogger) DebugObj(_, _ string, obj interface{}) { r.record(obj) }
func (r *recordingLogger) WarnObj(_, _ string, obj interface{})  { r.record(obj) }
func (r *recordingLogger) ErrorObj(_, _ string, obj interface{}) { r.record(obj) }

func TestCallStatesTracedForBothOperations(t *testing.T) {
	log := &recordingLogger{}
	client := New("http://backend", &stubTransport{status: http.StatusOK, body: []byte("{}")}, WithLogger(log))

	_, err := client.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"building", "sent", "succeeded"}, log.states)

	log.states = nil
	require.NoError(t, client.CreateBounce(context.Background(), "Coffee", time.Now(), nil))
	assert.Equal(t, []string{"building", "sent", "succeeded"}, log.states)

	log.states = nil
	client = New("http://backend", &stubTransport{err: errors.New("refused")}, WithLogger(log))
	_, err = client.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"building", "sent", "failed"}, log.states)
}
