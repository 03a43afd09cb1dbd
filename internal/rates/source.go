// Package rates holds the fiat exchange rate cache and its upstream source.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-converter/internal/storage"
)

// FetchTimeout bounds a single rate source request.
const FetchTimeout = 10 * time.Second

// DefaultRateAPIURL is the default exchange rate endpoint. The base currency
// code is appended as a path segment.
const DefaultRateAPIURL = "https://open.er-api.com/v6/latest"

// Source fetches fiat exchange rates relative to a base currency.
type Source interface {
	// Fetch returns units-of-code per 1 base for the requested codes.
	// The returned map may cover only a subset of codes.
	Fetch(ctx context.Context, base string, codes []string) (map[string]float64, error)
}

// HTTPSource fetches rates from a JSON HTTP API exposing a "rates" object
// keyed by currency code.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a rate source against baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultRateAPIURL
	}
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: FetchTimeout},
	}
}

var _ Source = (*HTTPSource)(nil)

// ratesResponse is the raw rate API response.
type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Fetch requests rates for codes relative to base.
func (s *HTTPSource) Fetch(ctx context.Context, base string, codes []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(codes, ","))
	endpoint := fmt.Sprintf("%s/%s?%s", s.baseURL, url.PathEscape(base), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", storage.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", storage.ErrUpstream, resp.StatusCode)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: unmarshal rates: %v", storage.ErrUpstream, err)
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rates object", storage.ErrUpstream)
	}

	// Keep only requested codes with sane values.
	out := make(map[string]float64, len(codes))
	for _, code := range codes {
		if rate, ok := parsed.Rates[code]; ok && rate > 0 {
			out[code] = rate
		}
	}
	return out, nil
}
