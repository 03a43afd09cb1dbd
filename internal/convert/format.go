package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber renders a value for display with thousands separators and
// magnitude-adaptive decimal places. Extremely small positive values fall
// back to scientific notation. Display only: callers keep computing with the
// unrounded value.
func FormatNumber(v float64) string {
	// Scientific notation for extremely small numbers.
	if v > 0 && v < 0.0000001 {
		return fmt.Sprintf("%.6e", v)
	}

	decimals := 2
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 0.00001:
		decimals = 10
	case abs < 0.0001:
		decimals = 8
	case abs < 0.001:
		decimals = 6
	case abs < 0.1:
		decimals = 4
	}

	fixed := strconv.FormatFloat(v, 'f', decimals, 64)

	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	formatted := groupThousands(intPart)
	if neg {
		formatted = "-" + formatted
	}
	if fracPart != "" {
		formatted += "." + fracPart
	}

	// Drop an all-zero fractional part.
	if fracPart != "" && strings.Trim(fracPart, "0") == "" {
		formatted = strings.TrimSuffix(formatted, "."+fracPart)
	}

	// Never render a small positive value as plain zero.
	if v > 0 && formatted == "0" {
		return fmt.Sprintf("%.6e", v)
	}

	return formatted
}

// groupThousands inserts comma separators into a digit string.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
