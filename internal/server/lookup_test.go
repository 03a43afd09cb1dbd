package server

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"crypto-converter/internal/catalog"
	"crypto-converter/internal/domain"
	"crypto-converter/internal/storage"
	"crypto-converter/internal/storage/memory"
)

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	return catalog.NewStore(catalog.StoreOptions{
		Feed:    stubFeed{},
		DataDir: t.TempDir(),
		Logger:  log.New(io.Discard, "", 0),
	})
}

func TestPriceResolver_SourceFirst(t *testing.T) {
	source := memory.NewPriceSource()
	source.Seed([]*domain.TokenQuote{
		{Symbol: "BTC", Name: "Bitcoin", TokenID: 3375, PriceUSD: 90000, MarketCap: ptr(1.6e12)},
	})
	resolver := NewPriceResolver(source, newTestCatalog(t))

	quote, err := resolver.PriceUSD(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("PriceUSD failed: %v", err)
	}
	// The live source wins over the catalog's static seed.
	if quote.PriceUSD != 90000 {
		t.Errorf("Price: got %v, want 90000", quote.PriceUSD)
	}
}

func TestPriceResolver_CatalogFallback(t *testing.T) {
	// Empty source: every symbol falls through to the catalog.
	resolver := NewPriceResolver(memory.NewPriceSource(), newTestCatalog(t))

	quote, err := resolver.PriceUSD(context.Background(), "DOGE")
	if err != nil {
		t.Fatalf("PriceUSD failed: %v", err)
	}
	if quote.PriceUSD != domain.DefaultTokens["DOGE"].MarketPrice {
		t.Errorf("Price: got %v, want seed %v", quote.PriceUSD, domain.DefaultTokens["DOGE"].MarketPrice)
	}
	if quote.Name != "Dogecoin" {
		t.Errorf("Name: got %q, want Dogecoin", quote.Name)
	}
}

func TestPriceResolver_NilSource(t *testing.T) {
	resolver := NewPriceResolver(nil, newTestCatalog(t))

	quote, err := resolver.PriceUSD(context.Background(), "eth")
	if err != nil {
		t.Fatalf("PriceUSD failed: %v", err)
	}
	if quote.Symbol != "ETH" {
		t.Errorf("Symbol: got %q, want ETH", quote.Symbol)
	}
}

func TestPriceResolver_UnknownSymbol(t *testing.T) {
	resolver := NewPriceResolver(memory.NewPriceSource(), newTestCatalog(t))

	if _, err := resolver.PriceUSD(context.Background(), "NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
