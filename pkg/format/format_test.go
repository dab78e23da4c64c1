package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"0", "₹0.00"},
		{"999", "₹999.00"},
		{"1000", "₹1,000.00"},
		{"123456.78", "₹1,23,456.78"},
		{"12345678.9", "₹1,23,45,678.90"},
		{"-1234.5", "-₹1,234.50"},
		{"0.004", "₹0.00"},
	}
	for _, tc := range cases {
		got := FormatCurrency(decimal.RequireFromString(tc.in))
		if got != tc.expected {
			t.Fatalf("FormatCurrency(%s) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestCurrencyRoundTrip(t *testing.T) {
	tolerance := decimal.RequireFromString("0.01")
	for _, in := range []string{"0", "1", "10.5", "999.999", "123456.78", "-42.424", "98765432.1", "0.005"} {
		amount := decimal.RequireFromString(in)
		parsed, err := ParseCurrency(FormatCurrency(amount))
		if err != nil {
			t.Fatalf("ParseCurrency(FormatCurrency(%s)) error: %v", in, err)
		}
		if parsed.Sub(amount).Abs().GreaterThan(tolerance) {
			t.Fatalf("round trip of %s drifted to %s", in, parsed)
		}
	}
}

func TestParseCurrencyAcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"INR 20,000", "20000"},
		{"Rs. -1,234.50", "-1234.5"},
		{"  ₹ 1,23,456.78 ", "123456.78"},
	}
	for _, tc := range cases {
		d, err := ParseCurrency(tc.in)
		if err != nil {
			t.Fatalf("ParseCurrency(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseCurrency(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
	for _, bad := range []string{"", "abc", "₹", "12a"} {
		if _, err := ParseCurrency(bad); err == nil {
			t.Fatalf("ParseCurrency(%q) expected error", bad)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(decimal.RequireFromString("1234567.8912")); got != "12,34,567.891" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatNumber(decimal.NewFromInt(100)); got != "100" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestFormatPhone(t *testing.T) {
	if got := FormatPhone("98765 43210"); got != "98765-43210" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatPhone("+91 98765 43210"); got != "98765-43210" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatPhone("12345"); got != "12345" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("98765 43210", "")
	if err != nil {
		t.Fatalf("NormalizePhone error: %v", err)
	}
	if got != "+919876543210" {
		t.Fatalf("expected +919876543210, got %s", got)
	}
	if _, err := NormalizePhone("123", "IN"); err == nil {
		t.Fatalf("expected invalid number error")
	}
}

func TestMiscFormatting(t *testing.T) {
	if got := FormatWeight(decimal.RequireFromString("12.5"), ""); got != "12.500 kg" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatQuantity(decimal.NewFromInt(40), ""); got != "40 bags" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatPercentage(87.456, 1); got != "87.5%" {
		t.Fatalf("unexpected %s", got)
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(start, start.Add(36*time.Hour)); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
	if got := DaysBetween(start.Add(48*time.Hour), start); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
}
