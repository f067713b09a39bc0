package ethereum

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
)

// Default configuration values.
const (
	DefaultEtherscanURL = "https://api.etherscan.io/api"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultPageSize     = 1000
)

// ErrRateLimited is returned when the explorer keeps rejecting requests for rate.
var ErrRateLimited = errors.New("rate limited")

// APIError is a non-retryable error reported by the explorer.
type APIError struct {
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("etherscan error: %s: %s", e.Message, e.Result)
}

// EtherscanClient implements LogFetcher using the Etherscan HTTP API.
type EtherscanClient struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	limiter     *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	pageSize    int
}

// EtherscanOption configures EtherscanClient.
type EtherscanOption func(*EtherscanClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) EtherscanOption {
	return func(c *EtherscanClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) EtherscanOption {
	return func(c *EtherscanClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) EtherscanOption {
	return func(c *EtherscanClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) EtherscanOption {
	return func(c *EtherscanClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) EtherscanOption {
	return func(c *EtherscanClient) {
		c.client = client
	}
}

// WithRateLimiter throttles every request through l.
func WithRateLimiter(l *RateLimiter) EtherscanOption {
	return func(c *EtherscanClient) {
		c.limiter = l
	}
}

// WithPageSize sets the getLogs page size.
func WithPageSize(n int) EtherscanOption {
	return func(c *EtherscanClient) {
		c.pageSize = n
	}
}

// NewEtherscanClient creates a client for baseURL (DefaultEtherscanURL if empty).
func NewEtherscanClient(baseURL, apiKey string, opts ...EtherscanOption) *EtherscanClient {
	if baseURL == "" {
		baseURL = DefaultEtherscanURL
	}
	c := &EtherscanClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		pageSize:    DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ LogFetcher = (*EtherscanClient)(nil)

// apiResponse covers both the module envelope and the proxy JSON-RPC envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const noRecords = "No records found"

// get performs a GET with rate limiting, retries and exponential backoff.
// A "No records found" response leaves result untouched.
func (c *EtherscanClient) get(ctx context.Context, params url.Values, result interface{}) error {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + "?" + params.Encode()

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

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w (429)", ErrRateLimited)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if apiResp.Error != nil {
			return &APIError{Message: "rpc error", Result: apiResp.Error.Message}
		}

		if apiResp.Status == "0" {
			var msg string
			_ = json.Unmarshal(apiResp.Result, &msg)
			if strings.Contains(apiResp.Message, noRecords) || strings.Contains(msg, noRecords) {
				return nil
			}
			if strings.Contains(strings.ToLower(msg), "rate limit") {
				lastErr = fmt.Errorf("%w: %s", ErrRateLimited, msg)
				continue
			}
			return &APIError{Message: apiResp.Message, Result: msg}
		}

		if result != nil && len(apiResp.Result) > 0 && string(apiResp.Result) != "null" {
			if err := json.Unmarshal(apiResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetLogs fetches logs per address, paging through results.
// Only the first value of each topic position is sent; positions are ANDed.
func (c *EtherscanClient) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	addresses := filter.Addresses
	if len(addresses) == 0 {
		addresses = []string{""}
	}

	var logs []Log
	for _, addr := range addresses {
		for page := 1; ; page++ {
			params := c.logParams(addr, filter)
			params.Set("page", strconv.Itoa(page))
			params.Set("offset", strconv.Itoa(c.pageSize))

			var raw []rawLog
			if err := c.get(ctx, params, &raw); err != nil {
				return nil, fmt.Errorf("get logs %s page %d: %w", addr, page, err)
			}
			for _, r := range raw {
				l, err := r.toLog()
				if err != nil {
					return nil, fmt.Errorf("decode log: %w", err)
				}
				logs = append(logs, l)
			}
			if len(raw) < c.pageSize {
				break
			}
		}
	}
	return logs, nil
}

func (c *EtherscanClient) logParams(addr string, filter LogFilter) url.Values {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	if addr != "" {
		params.Set("address", addr)
	}
	params.Set("fromBlock", strconv.FormatInt(filter.FromBlock, 10))
	if filter.ToBlock > 0 {
		params.Set("toBlock", strconv.FormatInt(filter.ToBlock, 10))
	} else {
		params.Set("toBlock", "latest")
	}

	var set []int
	for i, values := range filter.Topics {
		if i > 3 || len(values) == 0 {
			continue
		}
		params.Set(fmt.Sprintf("topic%d", i), values[0])
		set = append(set, i)
	}
	for i := 0; i+1 < len(set); i++ {
		params.Set(fmt.Sprintf("topic%d_%d_opr", set[i], set[i+1]), "and")
	}
	return params
}

// BlockTimestamp returns the block time through the eth_getBlockByNumber proxy.
func (c *EtherscanClient) BlockTimestamp(ctx context.Context, block int64) (int64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getBlockByNumber")
	params.Set("tag", "0x"+strconv.FormatInt(block, 16))
	params.Set("boolean", "false")

	var result *struct {
		Timestamp string `json:"timestamp"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return 0, fmt.Errorf("get block %d: %w", block, err)
	}
	if result == nil {
		return 0, fmt.Errorf("block %d not found", block)
	}
	return ParseQuantity(result.Timestamp)
}
