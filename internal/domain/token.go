package domain

import (
	"fmt"
	"sort"
	"time"
)

// Token is a catalog entry for a crypto token.
// Symbol is the primary key, always uppercase.
type Token struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	TokenID int64  `json:"token_id"` // upstream (Token Metrics) identifier
	Logo    string `json:"logo"`
	// MarketPrice is a static USD seed price, set only for default tokens.
	MarketPrice float64 `json:"market_price,omitempty"`
}

// TokenQuote is a priced token row from an analytics price source.
type TokenQuote struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	TokenID   int64    `json:"token_id"`
	PriceUSD  float64  `json:"price_usd"`
	MarketCap *float64 `json:"market_cap,omitempty"`
	Logo      string   `json:"logo,omitempty"`
}

// PricePoint is a token price with its refresh timestamp.
type PricePoint struct {
	PriceUSD  float64   `json:"price_usd"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCryptoIcon is the placeholder logo for tokens without a known image.
const DefaultCryptoIcon = "https://cryptologos.cc/logos/question-mark.png"

// DefaultTokens is the hand-maintained token table. For these symbols the
// token_id and logo are authoritative and always override discovered values.
// MarketPrice seeds the price table so default tokens never go priceless.
var DefaultTokens = map[string]Token{
	"BTC":  {Symbol: "BTC", Name: "Bitcoin", TokenID: 3375, Logo: "https://cryptologos.cc/logos/bitcoin-btc-logo.png", MarketPrice: 82000.0},
	"ETH":  {Symbol: "ETH", Name: "Ethereum", TokenID: 3306, Logo: "https://cryptologos.cc/logos/ethereum-eth-logo.png", MarketPrice: 3500.0},
	"USDT": {Symbol: "USDT", Name: "Tether", TokenID: 3312, Logo: "https://cryptologos.cc/logos/tether-usdt-logo.png", MarketPrice: 1.0},
	"BNB":  {Symbol: "BNB", Name: "Binance Coin", TokenID: 3308, Logo: "https://cryptologos.cc/logos/bnb-bnb-logo.png", MarketPrice: 580.0},
	"SOL":  {Symbol: "SOL", Name: "Solana", TokenID: 3347, Logo: "https://cryptologos.cc/logos/solana-sol-logo.png", MarketPrice: 160.0},
	"XRP":  {Symbol: "XRP", Name: "Ripple", TokenID: 3310, Logo: "https://cryptologos.cc/logos/xrp-xrp-logo.png", MarketPrice: 0.56},
	"ADA":  {Symbol: "ADA", Name: "Cardano", TokenID: 3317, Logo: "https://cryptologos.cc/logos/cardano-ada-logo.png", MarketPrice: 0.45},
	"DOGE": {Symbol: "DOGE", Name: "Dogecoin", TokenID: 3369, Logo: "https://cryptologos.cc/logos/dogecoin-doge-logo.png", MarketPrice: 0.15},
	"AVAX": {Symbol: "AVAX", Name: "Avalanche", TokenID: 5845, Logo: "https://cryptologos.cc/logos/avalanche-avax-logo.png", MarketPrice: 35.0},
	"DOT":  {Symbol: "DOT", Name: "Polkadot", TokenID: 5827, Logo: "https://cryptologos.cc/logos/polkadot-new-dot-logo.png", MarketPrice: 7.25},
}

// IsDefaultToken reports whether symbol is in the default token table.
func IsDefaultToken(symbol string) bool {
	_, ok := DefaultTokens[symbol]
	return ok
}

// coinMarketCapIDs maps common symbols to CoinMarketCap image IDs.
var coinMarketCapIDs = map[string]int{
	"BTC":   1,
	"ETH":   1027,
	"USDT":  825,
	"BNB":   1839,
	"SOL":   5426,
	"XRP":   52,
	"USDC":  3408,
	"ADA":   2010,
	"AVAX":  5805,
	"DOGE":  74,
	"DOT":   6636,
	"SHIB":  5994,
	"TRX":   1958,
	"LINK":  1975,
	"MATIC": 3890,
	"LTC":   2,
	"TON":   11419,
}

// CoinMarketCapID returns the CoinMarketCap id for a common symbol.
func CoinMarketCapID(symbol string) (int, bool) {
	id, ok := coinMarketCapIDs[symbol]
	return id, ok
}

// CommonSymbols lists the symbols with known CoinMarketCap images, sorted.
func CommonSymbols() []string {
	symbols := make([]string, 0, len(coinMarketCapIDs))
	for s := range coinMarketCapIDs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// DefaultLogo returns a logo URL for a token symbol. Common tokens map to
// their CoinMarketCap image; other symbols get a deterministic hash so the
// same symbol always resolves to the same image.
func DefaultLogo(symbol string) string {
	if id, ok := coinMarketCapIDs[symbol]; ok {
		return coinMarketCapLogoURL(id)
	}

	hash := 0
	for _, c := range symbol {
		hash += int(c)
	}
	return coinMarketCapLogoURL(hash % 10000)
}

func coinMarketCapLogoURL(id int) string {
	return fmt.Sprintf("https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png", id)
}
