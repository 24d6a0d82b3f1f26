// internal/blockchain/suibc/rpc.go
package suibc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	retryAttempts = 3
	retryDelay    = 300 * time.Millisecond
	reqTimeout    = 10 * time.Second
)

// LatencyRecorder receives per-call RPC latency.
type LatencyRecorder interface {
	RecordRPCLatency(method, endpoint string, duration time.Duration)
}

// rpcClient is a JSON-RPC 2.0 transport that rotates across nodes and
// retries transport failures.
type rpcClient struct {
	http    *http.Client
	urls    []string
	current int
	mu      sync.Mutex
	nextID  atomic.Uint64
	logger  *zap.Logger
	latency LatencyRecorder
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

func newRPCClient(urls []string, httpClient *http.Client, logger *zap.Logger) (*rpcClient, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &rpcClient{http: httpClient, urls: urls, logger: logger}, nil
}

func (c *rpcClient) nextURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	url := c.urls[c.current]
	c.current = (c.current + 1) % len(c.urls)
	return url
}

// call performs method and decodes its result into out. Node-level
// JSON-RPC errors are not retried; transport failures are, on the next
// node.
func (c *rpcClient) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reqTimeout)
		defer cancel()
	}
	if params == nil {
		params = []interface{}{}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryDelay
	policy.MaxInterval = retryDelay * 10

	operation := func() (json.RawMessage, error) {
		url := c.nextURL()
		result, err := c.do(ctx, url, method, params)
		if err == nil {
			return result, nil
		}
		wrapped := &Error{Err: err, URL: url, Method: method}
		if _, isNode := err.(*ResponseError); isNode {
			return nil, backoff.Permanent(wrapped)
		}
		return nil, wrapped
	}
	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying RPC call", zap.String("method", method), zap.Duration("backoff", d), zap.Error(err))
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(retryAttempts),
		backoff.WithNotify(notify))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err), Method: method, URL: c.urls[0]}
	}
	return nil
}

func (c *rpcClient) do(ctx context.Context, url, method string, params []interface{}) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		if c.latency != nil {
			c.latency.RecordRPCLatency(method, url, time.Since(start))
		}
	}()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var r rpcResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return r.Result, nil
}
