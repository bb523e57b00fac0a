package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rampart-go/rampart/provider/breaker"
	"github.com/rampart-go/rampart/provider/retry"
	"github.com/rampart-go/rampart/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const errConnRefused = utils.Error("connection refused")

func fastConfig() *Config {
	return &Config{
		TimeoutSeconds: 1,
		Breaker:        breaker.NewConfig(),
		Retry:          &retry.Config{MaxRetries: 3, BaseDelayMs: 1, MaxDelayMs: 5},
	}
}

func newTestClient(t *testing.T, transport Transport) *Client {
	t.Helper()
	c, err := NewClient(fastConfig(), transport, nil)
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())

	cfg := NewConfig()
	cfg.TimeoutSeconds = 0
	assert.Equal(t, ErrInvalidTimeout, cfg.Validate())

	cfg = NewConfig()
	cfg.Breaker.FailureThreshold = -1
	assert.Equal(t, breaker.ErrInvalidFailureThreshold, cfg.Validate())

	cfg = NewConfig()
	cfg.Retry.BaseDelayMs = 0
	assert.Equal(t, retry.ErrInvalidBaseDelay, cfg.Validate())
}

func TestTargetKey(t *testing.T) {
	assert.Equal(t, "api.example.com/v1/events", TargetKey("https://api.example.com/v1/events"))
	assert.Equal(t, "api.example.com/v1/events", TargetKey("http://api.example.com/v1/events?page=2"))
	assert.Equal(t, "not a url", TargetKey("not a url"))
}

func TestClient_Success(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{Status: 200, Body: []byte("ok")}, nil
	})

	resp, err := client.Do(context.Background(), &Request{Method: "GET", Target: "https://api.example.com/v1/events"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Equal(t, 1, calls)
}

func TestClient_RetryExhaustion(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return nil, errConnRefused
	})

	_, err := client.Do(context.Background(), &Request{Method: "GET", Target: "https://api.example.com/v1/events"})
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)
	// maxRetries+1 attempts
	assert.Equal(t, 4, calls)
}

func TestClient_NonRetryableShortCircuit(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{Status: 400}, nil
	})

	_, err := client.Do(context.Background(), &Request{Method: "POST", Target: "https://api.example.com/v1/events"})
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)
	assert.Equal(t, 1, calls)
}

func TestClient_RetryableStatus(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		if calls < 3 {
			return &Response{Status: 503}, nil
		}
		return &Response{Status: 200}, nil
	})

	resp, err := client.Do(context.Background(), &Request{Method: "GET", Target: "https://api.example.com/v1/events"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, 3, calls)
}

func TestClient_CircuitOpenShortCircuits(t *testing.T) {
	const target = "https://api.example.com/v1/events"
	calls := 0
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return nil, errConnRefused
	})

	// drive the breaker open: 4 attempts per call, threshold is 5
	_, err := client.Do(context.Background(), &Request{Method: "GET", Target: target})
	require.Error(t, err)
	_, err = client.Do(context.Background(), &Request{Method: "GET", Target: target})
	require.Error(t, err)
	require.Equal(t, breaker.StateOpen, client.Breakers().State(TargetKey(target)))

	// second call opened the circuit after its first attempt
	assert.Equal(t, 5, calls)

	// with the circuit open no transport call happens and no retry is consumed
	before := calls
	_, err = client.Do(context.Background(), &Request{Method: "GET", Target: target})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCircuitOpen, kind)
	assert.Equal(t, before, calls)
}

func TestClient_BreakerCheckedBeforeEveryAttempt(t *testing.T) {
	// breaker opens mid-retry-sequence; the next attempt must observe it
	cfg := fastConfig()
	cfg.Breaker.FailureThreshold = 2
	calls := 0
	transport := func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return nil, errConnRefused
	}
	client, err := NewClient(cfg, transport, nil)
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &Request{Method: "GET", Target: "https://api.example.com/v1/events"})
	require.Error(t, err)

	// attempts 1 and 2 fail and open the circuit; attempt 3 is rejected
	// without reaching the transport
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCircuitOpen, kind)
	assert.Equal(t, 2, calls)
}

func TestClient_TimeoutClassification(t *testing.T) {
	cfg := fastConfig()
	cfg.Retry.MaxRetries = 0
	client, err := NewClient(cfg, func(ctx context.Context, req *Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)
	require.NoError(t, err)

	req := &Request{Method: "GET", Target: "https://api.example.com/v1/events", TimeoutMs: 10}
	_, err = client.Do(context.Background(), req)
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)

	// a timeout counts as a breaker failure
	key := TargetKey(req.Target)
	assert.Equal(t, breaker.StateClosed, client.Breakers().State(key))
	reg := client.Breakers()
	for i := 0; i < 4; i++ {
		reg.RecordFailure(key)
	}
	assert.Equal(t, breaker.StateOpen, reg.State(key))
}

func TestClient_CallerCancellation(t *testing.T) {
	const target = "https://api.example.com/v1/events"
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Do(ctx, &Request{Method: "GET", Target: target})
	assert.Equal(t, context.Canceled, err)

	// explicit cancellation does not penalize the breaker
	assert.Equal(t, breaker.StateClosed, client.Breakers().State(TargetKey(target)))
}

func TestClient_ClientErrorDoesNotTripBreaker(t *testing.T) {
	const target = "https://api.example.com/v1/login"
	client := newTestClient(t, func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Status: 401}, nil
	})

	for i := 0; i < 10; i++ {
		_, err := client.Do(context.Background(), &Request{Method: "POST", Target: target})
		require.Error(t, err)
		kind, _ := KindOf(err)
		require.Equal(t, KindAuthentication, kind)
	}
	assert.Equal(t, breaker.StateClosed, client.Breakers().State(TargetKey(target)))
}

func TestHTTPTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	header := http.Header{}
	header.Set("X-Test", "value")

	resp, err := transport(context.Background(), &Request{
		Method: "GET",
		Target: server.URL,
		Header: header,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("hello"), resp.Body)
}
