// Package upstream implements the Token Metrics HTTP API client used for
// token discovery and batched price fetches.
package upstream

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

	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.tokenmetrics.com/v2"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client talks to the Token Metrics API over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new Token Metrics API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
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

// TokenEntry is one row of the token listing endpoint.
type TokenEntry struct {
	TokenID   int64  `json:"TOKEN_ID"`
	TokenName string `json:"TOKEN_NAME"`
	Symbol    string `json:"TOKEN_SYMBOL"`
}

// PriceEntry is one row of the price endpoint. CurrentPrice is a pointer
// because upstream omits it for tokens without price data.
type PriceEntry struct {
	TokenID      int64    `json:"TOKEN_ID"`
	Symbol       string   `json:"TOKEN_SYMBOL"`
	CurrentPrice *float64 `json:"CURRENT_PRICE"`
}

// tokensResponse is the raw token listing response.
type tokensResponse struct {
	Data   []TokenEntry `json:"data"`
	Length int          `json:"length"`
}

// pricesResponse is the raw price response.
type pricesResponse struct {
	Data []PriceEntry `json:"data"`
}

// ListTokens fetches one page of the upstream token listing.
func (c *Client) ListTokens(ctx context.Context, page, limit int) ([]TokenEntry, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	var resp tokensResponse
	if err := c.get(ctx, "/tokens", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPrices fetches current prices for a batch of token ids.
func (c *Client) GetPrices(ctx context.Context, tokenIDs []int64) ([]PriceEntry, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("token_id", strings.Join(ids, ","))

	var resp pricesResponse
	if err := c.get(ctx, "/price", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPrice fetches the current price for a single token id.
// Returns storage.ErrNotFound if upstream has no price for it.
func (c *Client) GetPrice(ctx context.Context, tokenID int64) (float64, error) {
	entries, err := c.GetPrices(ctx, []int64{tokenID})
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.TokenID == tokenID && e.CurrentPrice != nil {
			return *e.CurrentPrice, nil
		}
	}
	return 0, storage.ErrNotFound
}

// get performs a GET with retries and exponential backoff. Client errors
// other than 429 are final and returned without retrying.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	start := time.Now()
	defer func() {
		observability.RecordUpstreamLatency(path, time.Since(start).Seconds())
	}()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("api_key", c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				lastErr = fmt.Errorf("%w: %v", storage.ErrUpstreamTimeout, err)
			} else {
				lastErr = fmt.Errorf("http request: %w", err)
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: rate limited (429)", storage.ErrUpstream)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: unexpected status %d: %s", storage.ErrUpstream, resp.StatusCode, string(respBody))
			// A 4xx reflects the request, not upstream health; retrying
			// cannot change the outcome.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			lastErr = fmt.Errorf("%w: unmarshal response: %v", storage.ErrUpstream, err)
			continue
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
