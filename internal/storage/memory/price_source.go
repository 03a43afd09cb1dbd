package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/storage"
)

// PriceSource is an in-memory implementation of storage.PriceSource,
// used in tests and --use-memory mode.
type PriceSource struct {
	mu     sync.RWMutex
	quotes []*domain.TokenQuote
}

// NewPriceSource creates an empty in-memory price source.
func NewPriceSource() *PriceSource {
	return &PriceSource{}
}

var _ storage.PriceSource = (*PriceSource)(nil)

// Seed replaces the stored quotes.
func (s *PriceSource) Seed(quotes []*domain.TokenQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes = make([]*domain.TokenQuote, len(quotes))
	for i, q := range quotes {
		quoteCopy := *q
		s.quotes[i] = &quoteCopy
	}
}

// LookupBySymbol retrieves the quote for a symbol, case-insensitive,
// tie-broken by descending market cap (nulls last).
func (s *PriceSource) LookupBySymbol(_ context.Context, symbol string) (*domain.TokenQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*domain.TokenQuote
	for _, q := range s.quotes {
		if strings.EqualFold(q.Symbol, symbol) {
			matches = append(matches, q)
		}
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}

	sortByMarketCap(matches)
	quoteCopy := *matches[0]
	return &quoteCopy, nil
}

// Search retrieves quotes whose symbol or name contains query,
// ranked like the SQL sources.
func (s *PriceSource) Search(_ context.Context, query string, limit int) ([]*domain.TokenQuote, error) {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*domain.TokenQuote
	for _, quote := range s.quotes {
		sym := strings.ToLower(quote.Symbol)
		name := strings.ToLower(quote.Name)
		if strings.Contains(sym, q) || strings.Contains(name, q) {
			matches = append(matches, quote)
		}
	}

	rank := func(quote *domain.TokenQuote) int {
		sym := strings.ToLower(quote.Symbol)
		name := strings.ToLower(quote.Name)
		switch {
		case sym == q:
			return 1
		case strings.HasPrefix(sym, q):
			return 2
		case name == q:
			return 3
		case strings.HasPrefix(name, q):
			return 4
		}
		return 5
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := rank(matches[i]), rank(matches[j])
		if ri != rj {
			return ri < rj
		}
		return capOf(matches[i]) > capOf(matches[j])
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*domain.TokenQuote, len(matches))
	for i, m := range matches {
		quoteCopy := *m
		out[i] = &quoteCopy
	}
	return out, nil
}

// TopTokens retrieves the top tokens by market cap. Rows without a positive
// market cap or price are excluded.
func (s *PriceSource) TopTokens(_ context.Context, limit int) ([]*domain.TokenQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*domain.TokenQuote
	for _, q := range s.quotes {
		if q.MarketCap == nil || *q.MarketCap <= 0 || q.PriceUSD == 0 {
			continue
		}
		matches = append(matches, q)
	}

	sortByMarketCap(matches)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*domain.TokenQuote, len(matches))
	for i, m := range matches {
		quoteCopy := *m
		out[i] = &quoteCopy
	}
	return out, nil
}

// sortByMarketCap orders quotes by market cap descending, nulls last.
func sortByMarketCap(quotes []*domain.TokenQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return capOf(quotes[i]) > capOf(quotes[j])
	})
}

func capOf(q *domain.TokenQuote) float64 {
	if q.MarketCap == nil {
		return -1
	}
	return *q.MarketCap
}
