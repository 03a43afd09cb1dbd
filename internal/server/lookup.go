package server

import (
	"context"
	"errors"

	"crypto-converter/internal/catalog"
	"crypto-converter/internal/domain"
	"crypto-converter/internal/storage"
)

// PriceResolver resolves crypto quotes for the conversion engine. The SQL
// price source is consulted first; symbols it does not carry fall back to the
// refreshed catalog so default tokens always resolve.
type PriceResolver struct {
	source  storage.PriceSource
	catalog *catalog.Store
}

// NewPriceResolver creates a resolver. source may be nil, in which case only
// the catalog is consulted.
func NewPriceResolver(source storage.PriceSource, store *catalog.Store) *PriceResolver {
	return &PriceResolver{source: source, catalog: store}
}

// PriceUSD implements convert.PriceLookup.
func (r *PriceResolver) PriceUSD(ctx context.Context, symbol string) (*domain.TokenQuote, error) {
	if r.source != nil {
		quote, err := r.source.LookupBySymbol(ctx, symbol)
		if err == nil && quote.PriceUSD > 0 {
			return quote, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	token, err := r.catalog.Token(symbol)
	if err != nil {
		return nil, err
	}

	r.catalog.RefreshPrices(ctx, []string{symbol}, false)

	price, ok := r.catalog.Price(symbol)
	if !ok {
		price = domain.PricePoint{PriceUSD: token.MarketPrice}
	}

	return &domain.TokenQuote{
		Symbol:   token.Symbol,
		Name:     token.Name,
		TokenID:  token.TokenID,
		PriceUSD: price.PriceUSD,
		Logo:     token.Logo,
	}, nil
}
