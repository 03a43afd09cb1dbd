package domain

import "testing"

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"small preferred", `{"thumb":"t.png","small":"s.png","large":"l.png"}`, "s.png"},
		{"thumb fallback", `{"thumb":"t.png","large":"l.png"}`, "t.png"},
		{"large fallback", `{"large":"l.png"}`, "l.png"},
		{"empty object", `{}`, ""},
		{"empty input", ``, ""},
		{"malformed", `{not json`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractImage([]byte(tt.raw)); got != tt.want {
				t.Errorf("ExtractImage(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDefaultLogo(t *testing.T) {
	// Known symbols resolve to their CoinMarketCap image.
	if got := DefaultLogo("BTC"); got != "https://s2.coinmarketcap.com/static/img/coins/64x64/1.png" {
		t.Errorf("BTC logo: got %q", got)
	}

	// Unknown symbols are deterministic.
	first := DefaultLogo("OBSCURE")
	second := DefaultLogo("OBSCURE")
	if first != second {
		t.Errorf("Unknown symbol logo not deterministic: %q vs %q", first, second)
	}
	if first == "" {
		t.Error("Unknown symbol logo should not be empty")
	}
}

func TestFiatHelpers(t *testing.T) {
	if !IsFiat("USD") || IsFiat("BTC") {
		t.Error("IsFiat misclassifies")
	}
	if got := FiatLogo("EUR"); got != "https://flagcdn.com/w80/eu.png" {
		t.Errorf("EUR flag: got %q", got)
	}
	if got := FiatLogo("XXX"); got != "" {
		t.Errorf("Unknown fiat flag should be empty, got %q", got)
	}
	if len(FiatCodes()) != len(FiatNames) {
		t.Error("FiatCodes length mismatch")
	}
}
