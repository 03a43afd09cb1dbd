package domain

import "fmt"

// FiatNames maps supported fiat currency codes to display names.
var FiatNames = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound",
	"JPY": "Japanese Yen",
	"CAD": "Canadian Dollar",
	"AUD": "Australian Dollar",
	"CNY": "Chinese Yuan",
	"INR": "Indian Rupee",
	"BRL": "Brazilian Real",
	"CHF": "Swiss Franc",
	"VND": "Vietnamese Dong",
	"NGN": "Nigerian Naira",
}

// FallbackFiatRates are static exchange rates relative to USD
// (1 USD = X units of currency). They seed the rate cache at startup and
// backstop codes the live source does not return.
var FallbackFiatRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.93,
	"GBP": 0.80,
	"JPY": 156.78,
	"CAD": 1.37,
	"AUD": 1.52,
	"CNY": 7.24,
	"INR": 83.37,
	"BRL": 5.07,
	"CHF": 0.91,
	"VND": 24900,
	"NGN": 1412.76,
}

// countryCodes maps fiat codes to ISO country codes for flag images.
var countryCodes = map[string]string{
	"USD": "us",
	"EUR": "eu",
	"GBP": "gb",
	"JPY": "jp",
	"CAD": "ca",
	"AUD": "au",
	"CNY": "cn",
	"INR": "in",
	"BRL": "br",
	"CHF": "ch",
	"VND": "vn",
	"NGN": "ng",
}

// IsFiat reports whether code is a supported fiat currency.
func IsFiat(code string) bool {
	_, ok := FiatNames[code]
	return ok
}

// FiatLogo returns a country flag URL for a fiat code, or "" if unknown.
func FiatLogo(code string) string {
	cc, ok := countryCodes[code]
	if !ok {
		return ""
	}
	return fmt.Sprintf("https://flagcdn.com/w80/%s.png", cc)
}

// FiatCodes returns all supported fiat codes.
func FiatCodes() []string {
	codes := make([]string, 0, len(FiatNames))
	for code := range FiatNames {
		codes = append(codes, code)
	}
	return codes
}
