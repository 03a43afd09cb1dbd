package convert

import "testing"

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"integer", 100, "100"},
		{"two decimals", 1234.5, "1,234.50"},
		{"thousands grouping", 1234567.89, "1,234,567.89"},
		{"large integer", 82000, "82,000"},
		{"sub dime", 0.0567, "0.0567"},
		{"sub millibuck", 0.000567, "0.000567"},
		{"eight decimals", 0.00005678, "0.00005678"},
		{"ten decimals", 0.0000056789, "0.0000056789"},
		{"negative", -1234.5, "-1,234.50"},
		{"zero", 0, "0"},
		{"tiny positive scientific", 0.00000001234, "1.234000e-08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.in); got != tt.want {
				t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatNumber_TrimsAllZeroFraction(t *testing.T) {
	if got := FormatNumber(5.0); got != "5" {
		t.Errorf("FormatNumber(5.0) = %q, want 5", got)
	}
	// A non-zero fraction keeps its digits.
	if got := FormatNumber(5.25); got != "5.25" {
		t.Errorf("FormatNumber(5.25) = %q, want 5.25", got)
	}
}

func TestGroupThousands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
	}
	for _, tt := range tests {
		if got := groupThousands(tt.in); got != tt.want {
			t.Errorf("groupThousands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
