package storage

import (
	"context"

	"crypto-converter/internal/domain"
)

// PriceSource provides read access to the analytics price view.
type PriceSource interface {
	// LookupBySymbol retrieves the quote for a symbol, case-insensitive.
	// Ties are broken by descending market cap (nulls last).
	// Returns ErrNotFound if the symbol is unknown.
	LookupBySymbol(ctx context.Context, symbol string) (*domain.TokenQuote, error)

	// Search retrieves quotes whose symbol or name matches query
	// (substring, case-insensitive), ranked exact symbol first, then symbol
	// prefix, exact name, name prefix, then by market cap descending.
	Search(ctx context.Context, query string, limit int) ([]*domain.TokenQuote, error)

	// TopTokens retrieves the top tokens by market cap. Rows without a
	// positive market cap or without a price are excluded.
	TopTokens(ctx context.Context, limit int) ([]*domain.TokenQuote, error)
}
