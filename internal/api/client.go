// Package api is a client for the Kappa metadata HTTP API: coin listings,
// search and factory records.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.kappa.fun"
	DefaultTimeout = 10 * time.Second

	defaultRPS   = 10
	defaultBurst = 5
	maxBodySize  = 8 << 20
)

// Recorder receives one observation per API call.
type Recorder interface {
	RecordAPICall(endpoint, status string, duration time.Duration)
}

// Client talks to the metadata API.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the deadline applied when the caller's context has none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit limits outgoing requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a client for baseURL, or DefaultBaseURL when empty.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		limiter: rate.NewLimiter(defaultRPS, defaultBurst),
		timeout: DefaultTimeout,
		logger:  logger.Named("kappa-api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "kappa-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client errors mean the API is up.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	return c
}

// BaseURL returns the API root in use.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, u)
	})
	if c.recorder != nil {
		c.recorder.RecordAPICall(endpoint, statusLabel(err), time.Since(start))
	}
	if err != nil {
		c.logger.Debug("API request failed", zap.String("url", u), zap.Error(err))
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.Status)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "breaker_open"
	}
	return "error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// listPaths are the envelopes list endpoints have used, most specific first.
var listPaths = []string{"data.coins", "data.factories", "data.items", "data", "coins", "factories", "items"}

// decodeList finds the record array in body and decodes it into out.
func decodeList(body []byte, out interface{}) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: malformed json", ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	raw := ""
	if root.IsArray() {
		raw = root.Raw
	} else {
		for _, p := range listPaths {
			if v := root.Get(p); v.IsArray() {
				raw = v.Raw
				break
			}
		}
	}
	if raw == "" {
		return fmt.Errorf("%w: no record list in response", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// decodeOne decodes a single record, which may be wrapped in "data".
func decodeOne(body []byte, out interface{}) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: malformed json", ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	if d := root.Get("data"); d.IsObject() {
		root = d
	}
	if !root.IsObject() {
		return fmt.Errorf("%w: expected an object", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(root.Raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
