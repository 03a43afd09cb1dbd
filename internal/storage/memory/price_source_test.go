package memory

import (
	"context"
	"errors"
	"testing"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func seededSource() *PriceSource {
	s := NewPriceSource()
	s.Seed([]*domain.TokenQuote{
		{Symbol: "BTC", Name: "Bitcoin", TokenID: 3375, PriceUSD: 82000, MarketCap: ptr(1.6e12)},
		{Symbol: "ETH", Name: "Ethereum", TokenID: 3306, PriceUSD: 3500, MarketCap: ptr(4.2e11)},
		{Symbol: "BTCB", Name: "Bitcoin BEP2", TokenID: 4023, PriceUSD: 81900, MarketCap: ptr(1.2e9)},
		{Symbol: "PEPE", Name: "Pepe", TokenID: 24478, PriceUSD: 0.00001, MarketCap: ptr(5.0e9)},
		{Symbol: "DUST", Name: "Dust Token", TokenID: 777, PriceUSD: 0.5, MarketCap: nil},
	})
	return s
}

func TestPriceSource_LookupBySymbol(t *testing.T) {
	s := seededSource()
	ctx := context.Background()

	quote, err := s.LookupBySymbol(ctx, "btc")
	if err != nil {
		t.Fatalf("LookupBySymbol failed: %v", err)
	}
	if quote.Symbol != "BTC" || quote.PriceUSD != 82000 {
		t.Errorf("Unexpected quote: %+v", quote)
	}

	if _, err := s.LookupBySymbol(ctx, "NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPriceSource_LookupPrefersLargerCap(t *testing.T) {
	s := NewPriceSource()
	s.Seed([]*domain.TokenQuote{
		{Symbol: "DUP", Name: "Small Dup", TokenID: 1, PriceUSD: 0.1, MarketCap: ptr(1.0e6)},
		{Symbol: "DUP", Name: "Big Dup", TokenID: 2, PriceUSD: 5, MarketCap: ptr(9.0e9)},
		{Symbol: "DUP", Name: "Capless Dup", TokenID: 3, PriceUSD: 7, MarketCap: nil},
	})

	quote, err := s.LookupBySymbol(context.Background(), "DUP")
	if err != nil {
		t.Fatalf("LookupBySymbol failed: %v", err)
	}
	if quote.Name != "Big Dup" {
		t.Errorf("Expected the largest-cap row, got %q", quote.Name)
	}
}

func TestPriceSource_Search(t *testing.T) {
	s := seededSource()

	quotes, err := s.Search(context.Background(), "btc", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(quotes))
	}
	// Exact symbol match ranks above the prefix match.
	if quotes[0].Symbol != "BTC" || quotes[1].Symbol != "BTCB" {
		t.Errorf("Unexpected ranking: %s, %s", quotes[0].Symbol, quotes[1].Symbol)
	}
}

func TestPriceSource_SearchByName(t *testing.T) {
	s := seededSource()

	quotes, err := s.Search(context.Background(), "pepe", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "PEPE" {
		t.Errorf("Unexpected matches: %v", quotes)
	}
}

func TestPriceSource_SearchLimit(t *testing.T) {
	s := seededSource()

	quotes, err := s.Search(context.Background(), "b", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(quotes) != 1 {
		t.Errorf("Limit not applied: got %d matches", len(quotes))
	}
}

func TestPriceSource_TopTokens(t *testing.T) {
	s := seededSource()

	quotes, err := s.TopTokens(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopTokens failed: %v", err)
	}

	// DUST has no market cap and is excluded.
	for _, q := range quotes {
		if q.Symbol == "DUST" {
			t.Error("Capless token should be excluded from top tokens")
		}
	}
	if len(quotes) != 4 {
		t.Fatalf("Expected 4 tokens, got %d", len(quotes))
	}
	if quotes[0].Symbol != "BTC" {
		t.Errorf("Expected BTC first, got %s", quotes[0].Symbol)
	}

	limited, err := s.TopTokens(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopTokens failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Limit not applied: got %d", len(limited))
	}
}

func TestPriceSource_ReturnsCopies(t *testing.T) {
	s := seededSource()

	quote, err := s.LookupBySymbol(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("LookupBySymbol failed: %v", err)
	}
	quote.PriceUSD = 1

	again, err := s.LookupBySymbol(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("LookupBySymbol failed: %v", err)
	}
	if again.PriceUSD != 82000 {
		t.Error("Mutating a returned quote must not affect stored state")
	}
}
