package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"crypto-converter/internal/storage"
	"crypto-converter/internal/storage/clickhouse"
	"crypto-converter/internal/storage/migrations"
)

// setupTestDB creates a ClickHouse container and applies the embedded
// migrations. Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*clickhouse.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// seedView inserts rows into the analytics view table.
func seedView(t *testing.T, conn *clickhouse.Conn) {
	t.Helper()
	ctx := context.Background()

	rows := []struct {
		id     *int64
		name   *string
		symbol string
		price  *float64
		cap    *float64
		images string
	}{
		{ptr(int64(3375)), ptr("Bitcoin"), "BTC", ptr(82123.45), ptr(1.6e12), `{"small":"https://img.example/btc-small.png"}`},
		{ptr(int64(3306)), ptr("Ethereum"), "ETH", ptr(3456.78), ptr(4.2e11), ""},
		{ptr(int64(4023)), ptr("Bitcoin BEP2"), "BTCB", ptr(82000.0), ptr(1.2e9), ""},
		{ptr(int64(777)), ptr("Dust Token"), "DUST", ptr(0.5), nil, ""},
	}

	for _, row := range rows {
		err := conn.Exec(ctx, `
			INSERT INTO crypto_info_hub_current_view
				(TOKEN_ID, TOKEN_NAME, TOKEN_SYMBOL, CURRENT_PRICE, MARKET_CAP, IMAGES)
			VALUES (?, ?, ?, ?, ?, ?)
		`, row.id, row.name, row.symbol, row.price, row.cap, row.images)
		require.NoError(t, err, "failed to seed row %s", row.symbol)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestPriceSource_Clickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	seedView(t, conn)

	source := clickhouse.NewPriceSource(conn)
	ctx := context.Background()

	t.Run("LookupBySymbol", func(t *testing.T) {
		quote, err := source.LookupBySymbol(ctx, "btc")
		require.NoError(t, err)
		require.Equal(t, "BTC", quote.Symbol)
		require.Equal(t, int64(3375), quote.TokenID)
		require.InDelta(t, 82123.45, quote.PriceUSD, 1e-6)
		require.Equal(t, "https://img.example/btc-small.png", quote.Logo)
	})

	t.Run("LookupBySymbol not found", func(t *testing.T) {
		_, err := source.LookupBySymbol(ctx, "NOPE")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Search ranks exact symbol first", func(t *testing.T) {
		quotes, err := source.Search(ctx, "btc", 10)
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		require.Equal(t, "BTC", quotes[0].Symbol)
		require.Equal(t, "BTCB", quotes[1].Symbol)
	})

	t.Run("TopTokens orders by market cap and filters", func(t *testing.T) {
		quotes, err := source.TopTokens(ctx, 10)
		require.NoError(t, err)

		symbols := make([]string, len(quotes))
		for i, q := range quotes {
			symbols[i] = q.Symbol
		}
		require.Equal(t, []string{"BTC", "ETH", "BTCB"}, symbols)
	})
}
