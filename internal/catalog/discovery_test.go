package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/upstream"
)

// fakeLister serves scripted listing pages.
type fakeLister struct {
	pages [][]upstream.TokenEntry
	err   error
	calls int
}

func (f *fakeLister) ListTokens(ctx context.Context, page, limit int) ([]upstream.TokenEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

func TestDiscoverTokens_StopsOnShortPage(t *testing.T) {
	full := make([]upstream.TokenEntry, DiscoveryPageSize)
	for i := range full {
		full[i] = upstream.TokenEntry{
			TokenID:   int64(10000 + i),
			TokenName: fmt.Sprintf("Token %d", i),
			Symbol:    fmt.Sprintf("T%04d", i),
		}
	}
	short := []upstream.TokenEntry{
		{TokenID: 99991, TokenName: "Tail One", Symbol: "TAIL1"},
		{TokenID: 99992, TokenName: "Tail Two", Symbol: "TAIL2"},
	}

	lister := &fakeLister{pages: [][]upstream.TokenEntry{full, short}}
	d := NewDiscoverer(lister, log.New(io.Discard, "", 0))

	tokens := d.DiscoverTokens(context.Background())

	if lister.calls != 2 {
		t.Errorf("Expected 2 page fetches, got %d", lister.calls)
	}
	if _, ok := tokens["TAIL2"]; !ok {
		t.Error("Short page entries missing from catalog")
	}
	if len(tokens) < DiscoveryPageSize+2 {
		t.Errorf("Catalog too small: %d entries", len(tokens))
	}
}

func TestDiscoverTokens_SkipsInvalidEntries(t *testing.T) {
	lister := &fakeLister{pages: [][]upstream.TokenEntry{{
		{TokenID: 0, TokenName: "No ID", Symbol: "NOID"},
		{TokenID: 5, TokenName: "No Symbol", Symbol: ""},
		{TokenID: 7, TokenName: "", Symbol: "bare"},
	}}}
	d := NewDiscoverer(lister, log.New(io.Discard, "", 0))

	tokens := d.DiscoverTokens(context.Background())

	if _, ok := tokens["NOID"]; ok {
		t.Error("Entry without token id should be skipped")
	}

	// Symbols are uppercased, missing names fall back to the symbol.
	tok, ok := tokens["BARE"]
	if !ok {
		t.Fatal("Valid entry missing from catalog")
	}
	if tok.Name != "BARE" {
		t.Errorf("Name fallback: got %q, want BARE", tok.Name)
	}
	if tok.Logo != domain.DefaultCryptoIcon {
		t.Errorf("Discovered logo: got %q, want placeholder", tok.Logo)
	}
}

func TestDiscoverTokens_DefaultOverridesWin(t *testing.T) {
	lister := &fakeLister{pages: [][]upstream.TokenEntry{{
		{TokenID: 424242, TokenName: "Wrapped Bitcoin Clone", Symbol: "BTC"},
	}}}
	d := NewDiscoverer(lister, log.New(io.Discard, "", 0))

	tokens := d.DiscoverTokens(context.Background())

	btc := tokens["BTC"]
	def := domain.DefaultTokens["BTC"]
	if btc.TokenID != def.TokenID {
		t.Errorf("BTC token id: got %d, want override %d", btc.TokenID, def.TokenID)
	}
	if btc.Logo != def.Logo {
		t.Errorf("BTC logo: got %q, want override %q", btc.Logo, def.Logo)
	}
	// The discovered name survives the override.
	if btc.Name != "Wrapped Bitcoin Clone" {
		t.Errorf("BTC name: got %q, want discovered name", btc.Name)
	}

	// Defaults absent from the listing are inserted.
	if _, ok := tokens["DOGE"]; !ok {
		t.Error("Missing default token not inserted")
	}
}

func TestDiscoverTokens_FailureFallsBackToDefaults(t *testing.T) {
	lister := &fakeLister{err: errors.New("listing down")}
	d := NewDiscoverer(lister, log.New(io.Discard, "", 0))

	tokens := d.DiscoverTokens(context.Background())

	if len(tokens) != len(domain.DefaultTokens) {
		t.Fatalf("Expected default catalog, got %d tokens", len(tokens))
	}
	if tokens["SOL"].TokenID != domain.DefaultTokens["SOL"].TokenID {
		t.Error("Default catalog entries corrupted")
	}
}
