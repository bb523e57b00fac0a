package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rampart-go/rampart/log"
	"github.com/rampart-go/rampart/provider/breaker"
	"github.com/rampart-go/rampart/provider/retry"
	"github.com/rampart-go/rampart/utils"
)

const (
	// DefaultTimeout is the per-attempt timeout in seconds
	DefaultTimeout = 10

	ErrInvalidTimeout = utils.Error("timeout must be positive")
)

// Request describes an outbound call
type Request struct {
	Method    string
	Target    string // absolute URL
	Header    http.Header
	Body      []byte
	TimeoutMs int // optional per-call timeout override
}

// Response is the outcome of a successful call attempt
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport performs a single network call
// It stands in for the real network layer so tests can inject failures
type Transport func(ctx context.Context, req *Request) (*Response, error)

// Config holds configuration for the resilient client
type Config struct {
	TimeoutSeconds int             `json:"timeoutSeconds"` // default per-attempt timeout
	Breaker        *breaker.Config `json:"breaker"`
	Retry          *retry.Config   `json:"retry"`
}

// NewConfig returns a default client configuration
func NewConfig() *Config {
	return &Config{
		TimeoutSeconds: DefaultTimeout,
		Breaker:        breaker.NewConfig(),
		Retry:          retry.NewConfig(),
	}
}

// Validate checks if config values are valid
func (c *Config) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if c.Breaker != nil {
		if err := c.Breaker.Validate(); err != nil {
			return err
		}
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Client composes the circuit breaker registry, the retry policy and a
// per-attempt timeout guard into a single resilient call operation
type Client struct {
	transport Transport
	breakers  *breaker.Registry
	policy    *retry.Policy
	timeout   time.Duration
	logger    *log.Logger
}

// NewClient creates a resilient client; a nil transport uses net/http
func NewClient(cfg *Config, transport Transport, logger *log.Logger) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("httpclient")
	}
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}

	breakers, err := breaker.NewRegistry(cfg.Breaker, log.NewWithComponent("httpclient", "breaker"))
	if err != nil {
		return nil, err
	}
	policy, err := retry.NewPolicy(cfg.Retry, log.NewWithComponent("httpclient", "retry"))
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: transport,
		breakers:  breakers,
		policy:    policy,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:    logger,
	}, nil
}

// Breakers exposes the breaker registry for introspection
func (c *Client) Breakers() *breaker.Registry {
	return c.breakers
}

// NewHTTPTransport builds a Transport backed by an http.Client
// The per-attempt deadline is carried by the context, so the http.Client
// itself needs no timeout
func NewHTTPTransport(hc *http.Client) Transport {
	if hc == nil {
		hc = &http.Client{}
	}
	return func(ctx context.Context, req *Request) (*Response, error) {
		var body io.Reader
		if len(req.Body) > 0 {
			body = bytes.NewReader(req.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Target, body)
		if err != nil {
			return nil, err
		}
		for k, values := range req.Header {
			for _, v := range values {
				httpReq.Header.Add(k, v)
			}
		}

		httpResp, err := hc.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}

		return &Response{
			Status: httpResp.StatusCode,
			Header: httpResp.Header,
			Body:   data,
		}, nil
	}
}

// TargetKey derives the breaker key for a call destination: host plus path,
// so distinct endpoints on the same host fail independently
func TargetKey(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host + u.Path
}

// Do performs a resilient call: the breaker is consulted before every
// attempt including retries, each attempt runs under a timeout, and the
// breaker is fed exactly once per attempt
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	key := TargetKey(req.Target)
	timeout := c.timeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	var resp *Response
	attempt := func(ctx context.Context) error {
		if !c.breakers.CanProceed(key) {
			// synthetic rejection; not an attempt, the breaker is not fed
			return NewError(KindCircuitOpen, nil)
		}

		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := c.transport(actx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				// caller cancellation is not a service failure;
				// the breaker is not penalized
				return ctx.Err()
			}
			kind := KindNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				kind = KindTimeout
			}
			c.breakers.RecordFailure(key)
			return NewError(kind, err)
		}

		if result.Status >= 400 {
			cerr := FromStatus(result.Status)
			// the service answered; only server-side trouble trips the breaker
			if result.Status >= 500 {
				c.breakers.RecordFailure(key)
			} else {
				c.breakers.RecordSuccess(key)
			}
			return cerr
		}

		c.breakers.RecordSuccess(key)
		resp = result
		return nil
	}

	err := c.policy.Do(ctx, attempt, IsRetryable)
	if err != nil {
		c.logger.Warn("resilient call failed", map[string]interface{}{
			"target": key,
			"error":  err.Error(),
		})
		return nil, err
	}
	return resp, nil
}
