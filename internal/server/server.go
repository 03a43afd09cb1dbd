// Package server exposes the conversion API over HTTP: token listings,
// search, conversions, refresh control and the price WebSocket stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"crypto-converter/internal/catalog"
	"crypto-converter/internal/convert"
	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/rates"
	"crypto-converter/internal/storage"
)

const (
	defaultTokensLimit = 15
	defaultTopLimit    = 50
	searchDBLimit      = 20
)

// Options configures a Server.
type Options struct {
	Catalog *catalog.Store
	Rates   *rates.Cache
	Engine  *convert.Engine
	// Source is the SQL-backed price source. Nil in catalog-only mode.
	Source storage.PriceSource
	Hub    *Hub
	Logger *log.Logger
}

// Server handles the HTTP API.
type Server struct {
	catalog *catalog.Store
	rates   *rates.Cache
	engine  *convert.Engine
	source  storage.PriceSource
	hub     *Hub
	logger  *log.Logger
	started time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}
	return &Server{
		catalog: opts.Catalog,
		rates:   opts.Rates,
		engine:  opts.Engine,
		source:  opts.Source,
		hub:     opts.Hub,
		logger:  logger,
		started: time.Now(),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/tokens", s.handleTokens)
	mux.HandleFunc("/tokens/top", s.handleTopTokens)
	mux.HandleFunc("/tokens/search", s.handleSearch)
	mux.HandleFunc("/fiats", s.handleFiats)
	mux.HandleFunc("/convert", s.handleConvert)
	mux.HandleFunc("/prices/refresh", s.handleRefresh)
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	if s.hub != nil {
		mux.Handle("/ws/prices", s.hub)
	}

	return mux
}

// tokenResponse is the wire shape for token listings and search results.
type tokenResponse struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	TokenID  int64   `json:"token_id,omitempty"`
	Logo     string  `json:"logo"`
	PriceUSD float64 `json:"price_usd"`
}

// fiatResponse is the wire shape for the fiat listing.
type fiatResponse struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Logo   string  `json:"logo"`
	Rate   float64 `json:"rate,omitempty"` // units per USD
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Crypto Converter API is running"})
}

// handleTokens lists the supported tokens, top-of-market first.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	s.listTopTokens(w, r, defaultTokensLimit)
}

func (s *Server) handleTopTokens(w http.ResponseWriter, r *http.Request) {
	s.listTopTokens(w, r, defaultTopLimit)
}

func (s *Server) listTopTokens(w http.ResponseWriter, r *http.Request, defaultLimit int) {
	limit := queryInt(r, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	if s.source != nil {
		quotes, err := s.source.TopTokens(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, quotesToResponses(quotes))
			return
		}
		s.logger.Printf("top tokens query failed, serving catalog: %v", err)
	}

	writeJSON(w, http.StatusOK, s.catalogTokens(limit))
}

// catalogTokens serves the token list from the in-memory catalog, priced from
// the price table. Used when no SQL source is configured or it is down.
func (s *Server) catalogTokens(limit int) []tokenResponse {
	tokens := s.catalog.Tokens()

	out := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		price := t.MarketPrice
		if p, ok := s.catalog.Price(t.Symbol); ok {
			price = p.PriceUSD
		}
		out = append(out, tokenResponse{
			Symbol:   t.Symbol,
			Name:     t.Name,
			TokenID:  t.TokenID,
			Logo:     t.Logo,
			PriceUSD: price,
		})
	}

	// Default tokens first, then alphabetical.
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := domain.IsDefaultToken(out[i].Symbol), domain.IsDefaultToken(out[j].Symbol)
		if di != dj {
			return di
		}
		return out[i].Symbol < out[j].Symbol
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// handleSearch matches the query against the common-token table and the fiat
// list first, then the SQL source. Predefined entries come first and get
// their prices backfilled from the database matches.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusOK, []tokenResponse{})
		return
	}
	q := strings.ToLower(query)

	var predefined []tokenResponse
	for _, symbol := range domain.CommonSymbols() {
		if !strings.Contains(strings.ToLower(symbol), q) {
			continue
		}
		id, _ := domain.CoinMarketCapID(symbol)
		predefined = append(predefined, tokenResponse{
			Symbol:  symbol,
			Name:    symbol,
			TokenID: int64(id),
			Logo:    domain.DefaultLogo(symbol),
		})
	}
	for _, code := range domain.FiatCodes() {
		name := domain.FiatNames[code]
		if !strings.Contains(strings.ToLower(code), q) && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		entry := tokenResponse{
			Symbol: code,
			Name:   name,
			Logo:   domain.FiatLogo(code),
		}
		if rate, err := s.rates.Rate(code); err == nil {
			entry.PriceUSD = rate
		}
		predefined = append(predefined, entry)
	}

	seen := make(map[string]bool, len(predefined))
	for _, p := range predefined {
		seen[p.Symbol] = true
	}

	var dbResults []tokenResponse
	if s.source != nil {
		quotes, err := s.source.Search(r.Context(), query, searchDBLimit)
		if err != nil {
			s.logger.Printf("token search failed for %q: %v", query, err)
			if len(predefined) == 0 {
				writeError(w, http.StatusBadGateway, "token search unavailable")
				return
			}
		}
		for _, quote := range quotes {
			resp := quoteToResponse(quote)
			// Backfill live prices onto predefined matches.
			if seen[resp.Symbol] {
				for i := range predefined {
					if predefined[i].Symbol == resp.Symbol && predefined[i].PriceUSD == 0 {
						predefined[i].PriceUSD = resp.PriceUSD
					}
				}
				continue
			}
			seen[resp.Symbol] = true
			dbResults = append(dbResults, resp)
		}
	}

	combined := append(predefined, dbResults...)
	if combined == nil {
		combined = []tokenResponse{}
	}
	writeJSON(w, http.StatusOK, combined)
}

func (s *Server) handleFiats(w http.ResponseWriter, r *http.Request) {
	fiatRates := s.rates.Rates(r.Context())

	codes := domain.FiatCodes()
	out := make([]fiatResponse, 0, len(codes))
	for _, code := range codes {
		out = append(out, fiatResponse{
			Symbol: code,
			Name:   domain.FiatNames[code],
			Logo:   domain.FiatLogo(code),
			Rate:   fiatRates[code],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromCurrency == "" || req.ToCurrency == "" {
		writeError(w, http.StatusBadRequest, "from_currency and to_currency are required")
		return
	}

	start := time.Now()
	result, err := s.engine.Convert(r.Context(), req)
	observability.DefaultMetrics.ConversionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRefresh forces a full price refresh and broadcasts the result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot := s.catalog.RefreshPrices(r.Context(), nil, true)
	if s.hub != nil {
		s.hub.Broadcast(snapshot, time.Now())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "prices refreshed",
		"updated": len(snapshot),
	})
}

// statusResponse is the JSON shape of /status.
type statusResponse struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	CatalogSize      int       `json:"catalog_size"`
	RatesLastRefresh time.Time `json:"rates_last_refresh"`
	SQLSource        bool      `json:"sql_source"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:           "running",
		Uptime:           time.Since(s.started).String(),
		CatalogSize:      s.catalog.Size(),
		RatesLastRefresh: s.rates.LastRefresh(),
		SQLSource:        s.source != nil,
	})
}

func quotesToResponses(quotes []*domain.TokenQuote) []tokenResponse {
	out := make([]tokenResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, quoteToResponse(q))
	}
	return out
}

func quoteToResponse(q *domain.TokenQuote) tokenResponse {
	logo := q.Logo
	if logo == "" {
		logo = domain.DefaultLogo(q.Symbol)
	}
	return tokenResponse{
		Symbol:   q.Symbol,
		Name:     q.Name,
		TokenID:  q.TokenID,
		Logo:     logo,
		PriceUSD: q.PriceUSD,
	}
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrRateUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
