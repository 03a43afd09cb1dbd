package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// PriceSource implements storage.PriceSource against the analytics price
// view in PostgreSQL.
type PriceSource struct {
	pool *Pool
}

// NewPriceSource creates a new PriceSource.
func NewPriceSource(pool *Pool) *PriceSource {
	return &PriceSource{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceSource = (*PriceSource)(nil)

// LookupBySymbol retrieves the best quote for a symbol, case-insensitive,
// tie-broken by descending market cap with nulls last.
func (s *PriceSource) LookupBySymbol(ctx context.Context, symbol string) (*domain.TokenQuote, error) {
	query := `
		SELECT "TOKEN_ID", "TOKEN_NAME", "TOKEN_SYMBOL", "CURRENT_PRICE", "MARKET_CAP", "IMAGES"
		FROM analytics.crypto_info_hub_current_view
		WHERE UPPER("TOKEN_SYMBOL") = UPPER($1)
		ORDER BY "MARKET_CAP" DESC NULLS LAST
		LIMIT 1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, symbol)
	quote, err := scanQuote(row)
	observability.RecordDBQuery("postgres", "lookup_by_symbol", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lookup token by symbol: %w", err)
	}
	return quote, nil
}

// Search retrieves quotes matching query by symbol or name substring,
// ranked: exact symbol, symbol prefix, exact name, name prefix, then by
// market cap descending.
func (s *PriceSource) Search(ctx context.Context, query string, limit int) ([]*domain.TokenQuote, error) {
	sql := `
		SELECT "TOKEN_ID", "TOKEN_NAME", "TOKEN_SYMBOL", "CURRENT_PRICE", "MARKET_CAP", "IMAGES"
		FROM analytics.crypto_info_hub_current_view
		WHERE LOWER("TOKEN_SYMBOL") LIKE LOWER($1) OR LOWER("TOKEN_NAME") LIKE LOWER($1)
		ORDER BY
			CASE
				WHEN LOWER("TOKEN_SYMBOL") = LOWER($2) THEN 1
				WHEN LOWER("TOKEN_SYMBOL") LIKE LOWER($2 || '%') THEN 2
				WHEN LOWER("TOKEN_NAME") = LOWER($2) THEN 3
				WHEN LOWER("TOKEN_NAME") LIKE LOWER($2 || '%') THEN 4
				ELSE 5
			END,
			"MARKET_CAP" DESC NULLS LAST
		LIMIT $3
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, sql, "%"+query+"%", query, limit)
	observability.RecordDBQuery("postgres", "search", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("search tokens: %w", err)
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// TopTokens retrieves the top tokens by market cap. Rows without a positive
// market cap or a price are excluded.
func (s *PriceSource) TopTokens(ctx context.Context, limit int) ([]*domain.TokenQuote, error) {
	query := `
		SELECT "TOKEN_ID", "TOKEN_NAME", "TOKEN_SYMBOL", "CURRENT_PRICE", "MARKET_CAP", "IMAGES"
		FROM analytics.crypto_info_hub_current_view
		WHERE "MARKET_CAP" IS NOT NULL AND "MARKET_CAP" > 0 AND "CURRENT_PRICE" IS NOT NULL
		ORDER BY "MARKET_CAP" DESC
		LIMIT $1
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, limit)
	observability.RecordDBQuery("postgres", "top_tokens", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query top tokens: %w", err)
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// collectQuotes drains rows into quotes.
func collectQuotes(rows pgx.Rows) ([]*domain.TokenQuote, error) {
	var quotes []*domain.TokenQuote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token quote: %w", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token quotes: %w", err)
	}
	return quotes, nil
}

// scanQuote scans a single analytics view row into a TokenQuote. Nullable
// columns are normalized: a missing name falls back to the symbol, a missing
// price to zero, a missing image to the deterministic default logo.
func scanQuote(row pgx.Row) (*domain.TokenQuote, error) {
	var (
		tokenID   *int64
		name      *string
		symbol    string
		price     *float64
		marketCap *float64
		images    []byte
	)

	if err := row.Scan(&tokenID, &name, &symbol, &price, &marketCap, &images); err != nil {
		return nil, err
	}

	quote := &domain.TokenQuote{
		Symbol:    symbol,
		Name:      symbol,
		MarketCap: marketCap,
	}
	if tokenID != nil {
		quote.TokenID = *tokenID
	}
	if name != nil && *name != "" {
		quote.Name = *name
	}
	if price != nil {
		quote.PriceUSD = *price
	}

	quote.Logo = domain.ExtractImage(images)
	if quote.Logo == "" {
		quote.Logo = domain.DefaultLogo(symbol)
	}

	return quote, nil
}
