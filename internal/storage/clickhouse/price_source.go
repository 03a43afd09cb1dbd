package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// PriceSource implements storage.PriceSource against the analytics price
// view hosted in ClickHouse.
type PriceSource struct {
	conn *Conn
}

// NewPriceSource creates a new PriceSource.
func NewPriceSource(conn *Conn) *PriceSource {
	return &PriceSource{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSource = (*PriceSource)(nil)

// LookupBySymbol retrieves the best quote for a symbol, case-insensitive,
// tie-broken by descending market cap with nulls last.
func (s *PriceSource) LookupBySymbol(ctx context.Context, symbol string) (*domain.TokenQuote, error) {
	query := `
		SELECT TOKEN_ID, TOKEN_NAME, TOKEN_SYMBOL, CURRENT_PRICE, MARKET_CAP, IMAGES
		FROM crypto_info_hub_current_view
		WHERE upper(TOKEN_SYMBOL) = upper(?)
		ORDER BY isNull(MARKET_CAP), MARKET_CAP DESC
		LIMIT 1
	`

	start := time.Now()
	row := s.conn.QueryRow(ctx, query, symbol)
	quote, err := scanQuote(row)
	observability.RecordDBQuery("clickhouse", "lookup_by_symbol", time.Since(start).Seconds(), err)
	if err != nil {
		if isNoRows(err) {
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
		SELECT TOKEN_ID, TOKEN_NAME, TOKEN_SYMBOL, CURRENT_PRICE, MARKET_CAP, IMAGES
		FROM crypto_info_hub_current_view
		WHERE positionCaseInsensitive(TOKEN_SYMBOL, ?) > 0
		   OR positionCaseInsensitive(TOKEN_NAME, ?) > 0
		ORDER BY
			multiIf(
				lower(TOKEN_SYMBOL) = lower(?), 1,
				startsWith(lower(TOKEN_SYMBOL), lower(?)), 2,
				lower(TOKEN_NAME) = lower(?), 3,
				startsWith(lower(TOKEN_NAME), lower(?)), 4,
				5
			),
			isNull(MARKET_CAP), MARKET_CAP DESC
		LIMIT ?
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, sql, query, query, query, query, query, query, limit)
	observability.RecordDBQuery("clickhouse", "search", time.Since(start).Seconds(), err)
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
		SELECT TOKEN_ID, TOKEN_NAME, TOKEN_SYMBOL, CURRENT_PRICE, MARKET_CAP, IMAGES
		FROM crypto_info_hub_current_view
		WHERE MARKET_CAP IS NOT NULL AND MARKET_CAP > 0 AND CURRENT_PRICE IS NOT NULL
		ORDER BY MARKET_CAP DESC
		LIMIT ?
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, limit)
	observability.RecordDBQuery("clickhouse", "top_tokens", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query top tokens: %w", err)
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// collectQuotes drains rows into quotes.
func collectQuotes(rows driver.Rows) ([]*domain.TokenQuote, error) {
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

// rowScanner covers both driver.Row and driver.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanQuote scans one analytics view row, normalizing nullable columns the
// same way the postgres source does.
func scanQuote(row rowScanner) (*domain.TokenQuote, error) {
	var (
		tokenID   *int64
		name      *string
		symbol    string
		price     *float64
		marketCap *float64
		images    string
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

	quote.Logo = domain.ExtractImage([]byte(images))
	if quote.Logo == "" {
		quote.Logo = domain.DefaultLogo(symbol)
	}

	return quote, nil
}

// isNoRows reports whether err is the driver's empty result error.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
