package suirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// multiGetLimit is the node's cap on digests per multi-get call.
	multiGetLimit = 50
)

// HTTPClient talks JSON-RPC 2.0 to a Sui fullnode.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new fullnode RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// notFound reports whether the node rejected the request because the
// requested entity does not exist (yet).
func (e *rpcError) notFound() bool {
	return strings.Contains(strings.ToLower(e.Message), "not found") ||
		strings.Contains(strings.ToLower(e.Message), "could not find")
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors are returned as *rpcError and not retried.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetCheckpoint retrieves one checkpoint by sequence number.
func (c *HTTPClient) GetCheckpoint(ctx context.Context, sequence uint64) (*Checkpoint, error) {
	var result Checkpoint
	params := []interface{}{strconv.FormatUint(sequence, 10)}
	if err := c.call(ctx, "sui_getCheckpoint", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLatestCheckpointSequenceNumber retrieves the highest finalized
// checkpoint sequence.
func (c *HTTPClient) GetLatestCheckpointSequenceNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "sui_getLatestCheckpointSequenceNumber", nil, &result); err != nil {
		return 0, err
	}
	seq, err := strconv.ParseUint(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse latest sequence %q: %w", result, err)
	}
	return seq, nil
}

// MultiGetTransactionBlocks retrieves transactions with their events,
// chunked to the node's multi-get limit, preserving input order.
func (c *HTTPClient) MultiGetTransactionBlocks(ctx context.Context, digests []string) ([]TransactionBlock, error) {
	blocks := make([]TransactionBlock, 0, len(digests))
	for start := 0; start < len(digests); start += multiGetLimit {
		end := start + multiGetLimit
		if end > len(digests) {
			end = len(digests)
		}

		var chunk []TransactionBlock
		params := []interface{}{
			digests[start:end],
			map[string]bool{"showEvents": true},
		}
		if err := c.call(ctx, "sui_multiGetTransactionBlocks", params, &chunk); err != nil {
			return nil, err
		}
		blocks = append(blocks, chunk...)
	}
	return blocks, nil
}

// GetInitialSharedVersion retrieves the initial shared version of a
// shared object, needed by the executor to reference it in transactions.
func (c *HTTPClient) GetInitialSharedVersion(ctx context.Context, objectID string) (int64, error) {
	var result struct {
		Data *struct {
			Owner *struct {
				Shared *struct {
					InitialSharedVersion int64 `json:"initial_shared_version"`
				} `json:"Shared"`
			} `json:"owner"`
		} `json:"data"`
	}
	params := []interface{}{objectID, map[string]bool{"showOwner": true}}
	if err := c.call(ctx, "sui_getObject", params, &result); err != nil {
		return 0, err
	}
	if result.Data == nil || result.Data.Owner == nil || result.Data.Owner.Shared == nil {
		return 0, fmt.Errorf("object %s is not shared", objectID)
	}
	return result.Data.Owner.Shared.InitialSharedVersion, nil
}
