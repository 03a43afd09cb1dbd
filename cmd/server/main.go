// Package main runs the crypto converter API server:
// - HTTP API: token listings, search, fiats, conversions
// - Background refresh: fiat rates (6h TTL) and token prices (1m ticker)
// - WebSocket price stream for connected clients
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-converter/internal/catalog"
	"crypto-converter/internal/convert"
	"crypto-converter/internal/domain"
	"crypto-converter/internal/rates"
	"crypto-converter/internal/server"
	"crypto-converter/internal/storage"
	chstore "crypto-converter/internal/storage/clickhouse"
	"crypto-converter/internal/storage/memory"
	"crypto-converter/internal/storage/migrations"
	pgstore "crypto-converter/internal/storage/postgres"
	"crypto-converter/internal/upstream"
)

func main() {
	// Load .env file if exists; real env vars win.
	godotenv.Load()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("HTTP_ADDR", ":8000"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the analytics price view")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the analytics price view")
	useMemory := flag.Bool("use-memory", false, "Use the in-memory price source instead of a database")
	dataDir := flag.String("data-dir", envOr("DATA_DIR", "data"), "Directory for catalog and price persistence files")
	rateAPIURL := flag.String("rate-api-url", envOr("RATE_API_URL", rates.DefaultRateAPIURL), "Fiat exchange rate API base URL")
	upstreamURL := flag.String("upstream-url", envOr("TOKENMETRICS_API_URL", upstream.DefaultBaseURL), "Token Metrics API base URL")
	upstreamKey := flag.String("upstream-key", os.Getenv("TOKENMETRICS_API_KEY"), "Token Metrics API key")
	anchors := flag.String("anchor-symbols", envOr("ANCHOR_SYMBOLS", "BTC"), "Comma-separated symbols always price-checked against the direct endpoint")
	refreshInterval := flag.Duration("refresh-interval", 1*time.Minute, "Token price refresh interval")
	skipDiscovery := flag.Bool("skip-discovery", false, "Skip upstream token discovery at startup")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Price source (SQL-backed token quotes)
	source, cleanup, err := createPriceSource(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create price source: %v", err)
	}
	defer cleanup()

	// Upstream client (discovery + price refresh)
	feed := upstream.NewClient(*upstreamURL, *upstreamKey)

	// Token catalog
	store := catalog.NewStore(catalog.StoreOptions{
		Feed:          feed,
		DataDir:       *dataDir,
		AnchorSymbols: splitSymbols(*anchors),
		Logger:        log.New(os.Stdout, "[catalog] ", log.LstdFlags),
	})

	if !*skipDiscovery {
		discoverer := catalog.NewDiscoverer(feed, log.New(os.Stdout, "[discovery] ", log.LstdFlags))
		store.SetCatalog(discoverer.DiscoverTokens(ctx))
	}

	// Fiat rate cache, warmed before serving
	rateCache := rates.NewCache(rates.NewHTTPSource(*rateAPIURL), log.New(os.Stdout, "[rates] ", log.LstdFlags))
	rateCache.Refresh(ctx)

	// Conversion engine
	resolver := server.NewPriceResolver(source, store)
	engine := convert.New(rateCache, resolver)

	// HTTP server
	hub := server.NewHub(logger)
	srv := server.New(server.Options{
		Catalog: store,
		Rates:   rateCache,
		Engine:  engine,
		Source:  source,
		Hub:     hub,
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}()

	// Background price refresh
	go runRefreshLoop(ctx, store, hub, *refreshInterval, logger)

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	// Persist the catalog and price table before exit.
	if err := store.Flush(); err != nil {
		logger.Printf("Flush error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createPriceSource selects the SQL price source from flags. Postgres wins
// when both DSNs are set. With no DSN the in-memory source seeded from the
// default token table is used.
func createPriceSource(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.PriceSource, func(), error) {
	if useMemory || (postgresDSN == "" && clickhouseDSN == "") {
		src := memory.NewPriceSource()
		src.Seed(defaultQuotes())
		return src, func() {}, nil
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		return pgstore.NewPriceSource(pool), pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}
	return chstore.NewPriceSource(conn), func() { conn.Close() }, nil
}

// runRefreshLoop refreshes token prices on a fixed interval and broadcasts
// each snapshot to WebSocket subscribers.
func runRefreshLoop(ctx context.Context, store *catalog.Store, hub *server.Hub, interval time.Duration, logger *log.Logger) {
	logger.Printf("Starting price refresh loop (interval: %v)...", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := store.RefreshPrices(ctx, nil, false)
			hub.Broadcast(snapshot, time.Now())
		}
	}
}

// defaultQuotes converts the default token table into seed quotes for the
// in-memory source.
func defaultQuotes() []*domain.TokenQuote {
	quotes := make([]*domain.TokenQuote, 0, len(domain.DefaultTokens))
	for _, tok := range domain.DefaultTokens {
		// Synthetic cap keeps list ordering stable in memory mode.
		marketCap := tok.MarketPrice * 1e6
		quotes = append(quotes, &domain.TokenQuote{
			Symbol:    tok.Symbol,
			Name:      tok.Name,
			TokenID:   tok.TokenID,
			PriceUSD:  tok.MarketPrice,
			MarketCap: &marketCap,
			Logo:      tok.Logo,
		})
	}
	return quotes
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
