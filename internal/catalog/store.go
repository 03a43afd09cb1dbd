// Package catalog maintains the token catalog and its USD price table:
// per-symbol TTL refresh against the upstream price feed, default-token
// overrides, and durable JSON snapshots.
package catalog

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
	"crypto-converter/internal/upstream"
)

const (
	// PriceTTL is how long a fetched token price stays fresh.
	PriceTTL = 1 * time.Minute

	// MaxOtherTokens caps how many non-default tokens a full refresh touches.
	MaxOtherTokens = 40

	// PriceBatchSize is the upstream request size limit for price fetches.
	PriceBatchSize = 20

	// MinPrice replaces non-positive upstream prices. A stored price is
	// always strictly positive.
	MinPrice = 0.000001
)

// PriceFeed is the upstream price API surface the store depends on.
type PriceFeed interface {
	GetPrices(ctx context.Context, tokenIDs []int64) ([]upstream.PriceEntry, error)
	GetPrice(ctx context.Context, tokenID int64) (float64, error)
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Feed    PriceFeed
	DataDir string
	// AnchorSymbols are default-table symbols whose price is re-fetched from
	// the direct price endpoint under the price TTL. Defaults to {BTC}.
	AnchorSymbols []string
	Logger        *log.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store owns the token catalog and price table.
type Store struct {
	feed    PriceFeed
	dataDir string
	anchors map[string]bool
	logger  *log.Logger
	now     func() time.Time

	mu        sync.RWMutex
	tokens    map[string]domain.Token
	prices    map[string]float64
	updatedAt map[string]time.Time
}

// NewStore creates a store, loading any persisted catalog and price files.
// An empty catalog is seeded from the default token table and persisted.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[catalog] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	anchors := make(map[string]bool)
	if len(opts.AnchorSymbols) == 0 {
		anchors["BTC"] = true
	}
	for _, sym := range opts.AnchorSymbols {
		anchors[strings.ToUpper(sym)] = true
	}

	s := &Store{
		feed:      opts.Feed,
		dataDir:   opts.DataDir,
		anchors:   anchors,
		logger:    logger,
		now:       now,
		tokens:    make(map[string]domain.Token),
		prices:    make(map[string]float64),
		updatedAt: make(map[string]time.Time),
	}

	s.load()

	if len(s.tokens) == 0 {
		ts := s.now()
		for sym, tok := range domain.DefaultTokens {
			s.tokens[sym] = tok
			if tok.MarketPrice > 0 {
				s.prices[sym] = tok.MarketPrice
				s.updatedAt[sym] = ts
			}
		}
		s.saveTokens()
		s.savePrices()
		s.logger.Printf("initialized with %d default tokens", len(s.tokens))
	}

	observability.UpdateCatalogSize(len(s.tokens))
	return s
}

// Token retrieves a catalog entry by symbol, case-insensitive.
// Returns storage.ErrNotFound for unknown symbols.
func (s *Store) Token(symbol string) (*domain.Token, error) {
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &tok, nil
}

// Price returns the current USD price for a symbol, if one is stored.
func (s *Store) Price(symbol string) (domain.PricePoint, bool) {
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[symbol]
	if !ok {
		return domain.PricePoint{}, false
	}
	return domain.PricePoint{PriceUSD: price, UpdatedAt: s.updatedAt[symbol]}, true
}

// Tokens returns all catalog entries.
func (s *Store) Tokens() []domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Token, 0, len(s.tokens))
	for _, tok := range s.tokens {
		out = append(out, tok)
	}
	return out
}

// Size returns the number of catalog entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// SetCatalog replaces the token catalog, keeping existing prices, and
// persists the catalog file.
func (s *Store) SetCatalog(tokens map[string]domain.Token) {
	s.mu.Lock()
	s.tokens = make(map[string]domain.Token, len(tokens))
	for sym, tok := range tokens {
		s.tokens[strings.ToUpper(sym)] = tok
	}
	size := len(s.tokens)
	s.mu.Unlock()

	observability.UpdateCatalogSize(size)
	s.saveTokens()
}

// RefreshPrices brings prices up to date and returns a snapshot of the full
// price table. Default-table symbols are re-seeded from their static prices
// on every call; anchor symbols additionally get a live direct fetch under
// the price TTL. Non-default symbols are fetched in batches, filtered to
// those past the TTL unless force is set. The price file is persisted after
// all batches regardless of partial failures; applied batches are not rolled
// back.
func (s *Store) RefreshPrices(ctx context.Context, symbols []string, force bool) map[string]float64 {
	now := s.now()

	// Static seeds first: default tokens can never go priceless.
	s.mu.Lock()
	for sym, tok := range domain.DefaultTokens {
		if tok.MarketPrice > 0 {
			s.prices[sym] = tok.MarketPrice
			s.updatedAt[sym] = now
		}
	}
	s.mu.Unlock()

	for sym := range s.anchors {
		s.refreshAnchor(ctx, sym, force)
	}

	ids, syms := s.selectForRefresh(symbols, force, now)
	if len(ids) == 0 {
		return s.priceSnapshot()
	}

	s.logger.Printf("fetching prices for %d tokens", len(ids))
	updated := 0

	for start := 0; start < len(ids); start += PriceBatchSize {
		end := start + PriceBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		updated += s.refreshBatch(ctx, ids[start:end], syms[start:end])
	}

	if updated > 0 {
		observability.RecordPricesUpdated(updated)
		observability.RecordPriceRefresh("success")
	}
	s.savePrices()

	return s.priceSnapshot()
}

// refreshAnchor re-fetches one default-table symbol from the direct price
// endpoint, gated by the price TTL. This is the only path that overwrites a
// default token's static seed.
func (s *Store) refreshAnchor(ctx context.Context, symbol string, force bool) {
	s.mu.RLock()
	tok, known := s.tokens[symbol]
	last, seen := s.updatedAt[symbol]
	_, priced := s.prices[symbol]
	s.mu.RUnlock()

	if !known {
		return
	}
	if !force && priced && seen && s.now().Sub(last) < PriceTTL {
		return
	}

	price, err := s.feed.GetPrice(ctx, tok.TokenID)
	if err != nil {
		s.logger.Printf("anchor price fetch failed for %s: %v", symbol, err)
		return
	}
	if price <= 0 {
		return
	}

	s.mu.Lock()
	s.prices[symbol] = price
	s.updatedAt[symbol] = s.now()
	s.mu.Unlock()

	s.logger.Printf("anchor price for %s: %v", symbol, price)
}

// selectForRefresh picks the non-default, non-fresh symbols to fetch.
// With an explicit symbol set it filters that set; otherwise it takes up to
// MaxOtherTokens catalog symbols.
func (s *Store) selectForRefresh(symbols []string, force bool, now time.Time) ([]int64, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	var out []string

	fresh := func(sym string) bool {
		if force {
			return false
		}
		last, ok := s.updatedAt[sym]
		return ok && now.Sub(last) < PriceTTL
	}

	if len(symbols) > 0 {
		for _, raw := range symbols {
			sym := strings.ToUpper(raw)
			tok, known := s.tokens[sym]
			if !known || domain.IsDefaultToken(sym) {
				continue
			}
			if fresh(sym) {
				continue
			}
			ids = append(ids, tok.TokenID)
			out = append(out, sym)
		}
		return ids, out
	}

	for sym, tok := range s.tokens {
		if domain.IsDefaultToken(sym) {
			continue
		}
		if fresh(sym) {
			continue
		}
		ids = append(ids, tok.TokenID)
		out = append(out, sym)
		if len(out) >= MaxOtherTokens {
			break
		}
	}
	return ids, out
}

// refreshBatch issues one upstream price request and applies matches.
// Returns the number of prices updated.
func (s *Store) refreshBatch(ctx context.Context, ids []int64, syms []string) int {
	entries, err := s.feed.GetPrices(ctx, ids)
	if err != nil {
		s.logger.Printf("price batch fetch failed: %v", err)
		observability.RecordPriceRefresh("error")
		return 0
	}

	now := s.now()
	updated := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if entry.CurrentPrice == nil {
			continue
		}
		sym := s.matchSymbolLocked(entry, syms)
		if sym == "" || domain.IsDefaultToken(sym) {
			continue
		}

		price := *entry.CurrentPrice
		if price <= 0 {
			price = MinPrice
		}
		s.prices[sym] = price
		s.updatedAt[sym] = now
		updated++
	}

	return updated
}

// matchSymbolLocked maps a returned price entry back to a requested symbol,
// by symbol equality first, then by token id. Callers hold s.mu.
func (s *Store) matchSymbolLocked(entry upstream.PriceEntry, syms []string) string {
	upper := strings.ToUpper(entry.Symbol)
	for _, sym := range syms {
		if sym == upper {
			return sym
		}
		if tok, ok := s.tokens[sym]; ok && tok.TokenID == entry.TokenID {
			return sym
		}
	}
	return ""
}

// ConversionRate computes price(from)/price(to) after refreshing both
// symbols. Returns storage.ErrNotFound if either symbol is not in the
// catalog, storage.ErrRateUnavailable if either price is missing or
// non-positive.
func (s *Store) ConversionRate(ctx context.Context, from, to string, force bool) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	s.mu.RLock()
	_, fromKnown := s.tokens[from]
	_, toKnown := s.tokens[to]
	s.mu.RUnlock()

	if !fromKnown || !toKnown {
		return 0, storage.ErrNotFound
	}

	s.RefreshPrices(ctx, []string{from, to}, force)

	s.mu.RLock()
	fromPrice := s.prices[from]
	toPrice := s.prices[to]
	s.mu.RUnlock()

	if fromPrice <= 0 || toPrice <= 0 {
		return 0, storage.ErrRateUnavailable
	}
	return fromPrice / toPrice, nil
}

// priceSnapshot copies the current price table.
func (s *Store) priceSnapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.prices))
	for sym, price := range s.prices {
		out[sym] = price
	}
	return out
}

// Flush persists both catalog and price files.
func (s *Store) Flush() error {
	return errors.Join(s.saveTokens(), s.savePrices())
}
