// Package convert computes exchange rates between fiat and crypto currencies
// through a USD pivot.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/rates"
	"crypto-converter/internal/storage"
)

// PriceLookup resolves a crypto symbol to its USD quote.
// Implementations return storage.ErrNotFound for unknown symbols.
type PriceLookup interface {
	PriceUSD(ctx context.Context, symbol string) (*domain.TokenQuote, error)
}

// Engine converts amounts between currency codes. Fiat rates come from the
// rate cache, crypto prices from the price lookup; each crypto price is
// resolved exactly once per request so a concurrent refresh cannot skew a
// single conversion.
type Engine struct {
	rates  *rates.Cache
	prices PriceLookup
}

// New creates a conversion engine.
func New(rateCache *rates.Cache, prices PriceLookup) *Engine {
	return &Engine{rates: rateCache, prices: prices}
}

// Convert computes the conversion for req. The four pair categories
// (fiat/fiat, fiat/crypto, crypto/fiat, crypto/crypto) all pivot through USD.
func (e *Engine) Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	from := strings.ToUpper(req.FromCurrency)
	to := strings.ToUpper(req.ToCurrency)
	amount := req.Amount

	if amount <= 0 {
		observability.RecordConversionError("invalid_input")
		return nil, fmt.Errorf("%w: amount must be greater than zero", storage.ErrInvalidInput)
	}

	fromFiat := domain.IsFiat(from)
	toFiat := domain.IsFiat(to)

	result := &domain.ConversionResult{
		From:   from,
		To:     to,
		Amount: amount,
	}

	fiatRates := e.rates.Rates(ctx)

	var rate float64

	switch {
	case fromFiat && toFiat:
		fromRate, okFrom := fiatRates[from]
		toRate, okTo := fiatRates[to]
		if !okFrom || !okTo || fromRate <= 0 || toRate <= 0 {
			observability.RecordConversionError("rate_unavailable")
			return nil, fmt.Errorf("%w: no exchange rate for %s or %s", storage.ErrRateUnavailable, from, to)
		}
		// Convert to USD first, then to the target currency.
		rate = (1 / fromRate) * toRate

		result.FromName = domain.FiatNames[from]
		result.ToName = domain.FiatNames[to]
		result.FromLogo = domain.FiatLogo(from)
		result.ToLogo = domain.FiatLogo(to)

		observability.RecordConversion("fiat_fiat")

	case fromFiat && !toFiat:
		fromRate, ok := fiatRates[from]
		if !ok || fromRate <= 0 {
			observability.RecordConversionError("rate_unavailable")
			return nil, fmt.Errorf("%w: no exchange rate for %s", storage.ErrRateUnavailable, from)
		}
		quote, err := e.lookup(ctx, to)
		if err != nil {
			return nil, err
		}
		// amount -> USD, USD -> target crypto.
		usdAmount := amount / fromRate
		rate = usdAmount * (1 / quote.PriceUSD) / amount

		result.FromName = domain.FiatNames[from]
		result.FromLogo = domain.FiatLogo(from)
		result.ToName = quote.Name
		result.ToLogo = cryptoLogo(quote)

		observability.RecordConversion("fiat_crypto")

	case !fromFiat && toFiat:
		toRate, ok := fiatRates[to]
		if !ok || toRate <= 0 {
			observability.RecordConversionError("rate_unavailable")
			return nil, fmt.Errorf("%w: no exchange rate for %s", storage.ErrRateUnavailable, to)
		}
		quote, err := e.lookup(ctx, from)
		if err != nil {
			return nil, err
		}
		rate = quote.PriceUSD * toRate

		result.FromName = quote.Name
		result.FromLogo = cryptoLogo(quote)
		result.ToName = domain.FiatNames[to]
		result.ToLogo = domain.FiatLogo(to)

		observability.RecordConversion("crypto_fiat")

	default:
		fromQuote, err := e.lookup(ctx, from)
		if err != nil {
			return nil, err
		}
		toQuote, err := e.lookup(ctx, to)
		if err != nil {
			return nil, err
		}
		rate = fromQuote.PriceUSD / toQuote.PriceUSD

		result.FromName = fromQuote.Name
		result.FromLogo = cryptoLogo(fromQuote)
		result.ToName = toQuote.Name
		result.ToLogo = cryptoLogo(toQuote)

		observability.RecordConversion("crypto_crypto")
	}

	result.Rate = rate
	result.ConvertedAmount = amount * rate
	result.AmountFormatted = FormatNumber(amount)
	result.ConvertedAmountFormatted = FormatNumber(result.ConvertedAmount)
	result.RateFormatted = FormatNumber(rate)

	return result, nil
}

// lookup resolves one crypto quote, mapping unknown symbols and non-positive
// prices to ErrRateUnavailable.
func (e *Engine) lookup(ctx context.Context, symbol string) (*domain.TokenQuote, error) {
	quote, err := e.prices.PriceUSD(ctx, symbol)
	if err != nil {
		observability.RecordConversionError("price_unavailable")
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: could not determine price for %s", storage.ErrRateUnavailable, symbol)
		}
		return nil, err
	}
	if quote.PriceUSD <= 0 {
		observability.RecordConversionError("price_unavailable")
		return nil, fmt.Errorf("%w: could not determine price for %s", storage.ErrRateUnavailable, symbol)
	}
	return quote, nil
}

// cryptoLogo picks the quote's logo, falling back to the deterministic
// default for the symbol.
func cryptoLogo(quote *domain.TokenQuote) string {
	if quote.Logo != "" {
		return quote.Logo
	}
	return domain.DefaultLogo(quote.Symbol)
}
