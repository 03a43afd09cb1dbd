package rates

import (
	"context"
	"log"
	"sync"
	"time"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// TTL is how long a fetched rate table stays fresh.
const TTL = 6 * time.Hour

// Cache holds the fiat-to-USD rate table. The table is replaced wholesale on
// refresh and read concurrently by conversion requests; readers never observe
// a partially updated mapping.
type Cache struct {
	source Source
	logger *log.Logger
	now    func() time.Time

	mu          sync.RWMutex
	rates       map[string]float64
	lastRefresh time.Time
}

// NewCache creates a rate cache seeded from the static fallback table.
func NewCache(source Source, logger *log.Logger) *Cache {
	c := &Cache{
		source: source,
		logger: logger,
		now:    time.Now,
	}
	c.rates = fallbackCopy()
	return c
}

// fallbackCopy clones the static rate table.
func fallbackCopy() map[string]float64 {
	out := make(map[string]float64, len(domain.FallbackFiatRates))
	for code, rate := range domain.FallbackFiatRates {
		out[code] = rate
	}
	return out
}

// Rates returns the current rate table, refreshing first if the cache is
// stale or empty. A failed refresh degrades to the previous table.
func (c *Cache) Rates(ctx context.Context) map[string]float64 {
	c.mu.RLock()
	stale := len(c.rates) == 0 || c.now().Sub(c.lastRefresh) > TTL
	c.mu.RUnlock()

	if stale {
		c.Refresh(ctx)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.lastRefresh.IsZero() {
		observability.UpdateRateCacheAge(c.now().Sub(c.lastRefresh).Seconds())
	}
	out := make(map[string]float64, len(c.rates))
	for code, rate := range c.rates {
		out[code] = rate
	}
	return out
}

// Rate returns the cached rate for one code without triggering a refresh.
// Returns ErrRateUnavailable for unknown codes.
func (c *Cache) Rate(code string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate, ok := c.rates[code]
	if !ok || rate <= 0 {
		return 0, storage.ErrRateUnavailable
	}
	return rate, nil
}

// LastRefresh returns when the table was last successfully refreshed.
// Zero when only fallback values have ever been served.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Refresh fetches live rates and swaps in a fresh table. The new table starts
// from the static fallback so every known code keeps some value even when the
// source returns a subset. On failure the previous table keeps serving; an
// empty cache is re-seeded from the fallback table.
func (c *Cache) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	fetched, err := c.source.Fetch(ctx, "USD", domain.FiatCodes())
	if err != nil {
		c.logger.Printf("rate refresh failed, serving cached rates: %v", err)
		observability.RecordRateRefresh("error")

		c.mu.Lock()
		if len(c.rates) == 0 {
			c.rates = fallbackCopy()
		}
		c.mu.Unlock()
		return
	}

	next := fallbackCopy()
	for code, rate := range fetched {
		next[code] = rate
	}
	next["USD"] = 1.0

	c.mu.Lock()
	c.rates = next
	c.lastRefresh = c.now()
	c.mu.Unlock()

	observability.RecordRateRefresh("success")
	observability.UpdateRateCacheAge(0)
	c.logger.Printf("refreshed %d fiat rates (%d live)", len(next), len(fetched))
}
