package rates

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// stubSource returns canned rates or a canned error.
type stubSource struct {
	rates map[string]float64
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context, base string, codes []string) (map[string]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCache_SeededFromFallback(t *testing.T) {
	cache := NewCache(&stubSource{err: errors.New("down")}, testLogger())

	rate, err := cache.Rate("EUR")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if rate != domain.FallbackFiatRates["EUR"] {
		t.Errorf("EUR rate mismatch: got %v, want %v", rate, domain.FallbackFiatRates["EUR"])
	}

	if _, err := cache.Rate("XXX"); !errors.Is(err, storage.ErrRateUnavailable) {
		t.Errorf("Expected ErrRateUnavailable for unknown code, got %v", err)
	}
}

func TestCache_RefreshOverlaysFallback(t *testing.T) {
	src := &stubSource{rates: map[string]float64{"EUR": 0.95, "JPY": 150.0}}
	cache := NewCache(src, testLogger())

	cache.Refresh(context.Background())

	got := cache.Rates(context.Background())

	if got["EUR"] != 0.95 {
		t.Errorf("EUR not overlaid: got %v, want 0.95", got["EUR"])
	}
	if got["JPY"] != 150.0 {
		t.Errorf("JPY not overlaid: got %v, want 150.0", got["JPY"])
	}
	// Codes the source did not return keep their fallback values.
	if got["GBP"] != domain.FallbackFiatRates["GBP"] {
		t.Errorf("GBP lost fallback value: got %v", got["GBP"])
	}
	if got["USD"] != 1.0 {
		t.Errorf("USD must always be 1.0, got %v", got["USD"])
	}
}

func TestCache_USDAlwaysOne(t *testing.T) {
	// Even a source that lies about USD cannot displace the identity rate.
	src := &stubSource{rates: map[string]float64{"USD": 0.5}}
	cache := NewCache(src, testLogger())

	cache.Refresh(context.Background())

	rate, err := cache.Rate("USD")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if rate != 1.0 {
		t.Errorf("USD rate: got %v, want 1.0", rate)
	}
}

func TestCache_FailedRefreshKeepsPrevious(t *testing.T) {
	src := &stubSource{rates: map[string]float64{"EUR": 0.95}}
	cache := NewCache(src, testLogger())
	cache.Refresh(context.Background())

	src.err = errors.New("upstream down")
	cache.Refresh(context.Background())

	rate, err := cache.Rate("EUR")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if rate != 0.95 {
		t.Errorf("EUR rate after failed refresh: got %v, want 0.95", rate)
	}
}

func TestCache_RatesRefreshesWhenStale(t *testing.T) {
	src := &stubSource{rates: map[string]float64{"EUR": 0.95}}
	cache := NewCache(src, testLogger())

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Rates(context.Background())
	if src.calls != 1 {
		t.Fatalf("Expected 1 fetch for cold cache, got %d", src.calls)
	}

	// Fresh table, no second fetch.
	cache.Rates(context.Background())
	if src.calls != 1 {
		t.Errorf("Expected no fetch while fresh, got %d", src.calls)
	}

	// Past the TTL the next read refreshes.
	cache.now = func() time.Time { return now.Add(TTL + time.Minute) }
	cache.Rates(context.Background())
	if src.calls != 2 {
		t.Errorf("Expected refresh after TTL, got %d fetches", src.calls)
	}
}

func TestCache_AgeGaugeTracksLastRefresh(t *testing.T) {
	src := &stubSource{rates: map[string]float64{"EUR": 0.95}}
	cache := NewCache(src, testLogger())

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Refresh(context.Background())
	if got := testutil.ToFloat64(observability.DefaultMetrics.RateCacheAge); got != 0 {
		t.Errorf("Age after refresh: got %v, want 0", got)
	}

	// A fresh read an hour later reports the cache age without refetching.
	cache.now = func() time.Time { return now.Add(time.Hour) }
	cache.Rates(context.Background())
	if got := testutil.ToFloat64(observability.DefaultMetrics.RateCacheAge); got != 3600 {
		t.Errorf("Age after an hour: got %v, want 3600", got)
	}
}

func TestCache_LastRefreshZeroOnFallbackOnly(t *testing.T) {
	cache := NewCache(&stubSource{err: errors.New("down")}, testLogger())

	cache.Refresh(context.Background())

	if !cache.LastRefresh().IsZero() {
		t.Errorf("LastRefresh should stay zero when only fallback served, got %v", cache.LastRefresh())
	}
}
