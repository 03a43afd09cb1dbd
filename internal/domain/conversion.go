package domain

// ConversionRequest is an inbound conversion order.
type ConversionRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

// ConversionResult is the computed conversion. The numeric fields are
// authoritative; the *_formatted fields are display-only renderings and
// never feed back into computation.
type ConversionResult struct {
	From                     string  `json:"from"`
	To                       string  `json:"to"`
	FromName                 string  `json:"from_name"`
	ToName                   string  `json:"to_name"`
	FromLogo                 string  `json:"from_logo,omitempty"`
	ToLogo                   string  `json:"to_logo,omitempty"`
	Amount                   float64 `json:"amount"`
	AmountFormatted          string  `json:"amount_formatted"`
	ConvertedAmount          float64 `json:"converted_amount"`
	ConvertedAmountFormatted string  `json:"converted_amount_formatted"`
	Rate                     float64 `json:"rate"`
	RateFormatted            string  `json:"rate_formatted"`
}
