// Package format renders amounts, quantities and phone numbers for the en-IN
// locale the dashboard works in, and parses user-entered amounts back.
package format

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

const (
	CurrencySymbol = "₹"
	DefaultRegion  = "IN"
)

var ErrInvalidAmount = errors.New("invalid amount")

// FormatCurrency renders an INR amount with two decimals and Indian digit grouping, e.g. ₹1,23,456.78.
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	out := CurrencySymbol + groupIndian(intPart) + "." + frac
	if amount.Round(2).IsNegative() {
		return "-" + out
	}
	return out
}

// FormatNumber renders a number with Indian grouping and at most three fraction digits.
func FormatNumber(amount decimal.Decimal) string {
	s := amount.Abs().Round(3).String()
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := groupIndian(intPart)
	if hasFrac {
		out += "." + frac
	}
	if amount.Round(3).IsNegative() {
		return "-" + out
	}
	return out
}

// ParseCurrency accepts formatted input such as "₹1,23,456.78", "INR 500", "Rs. -20" or "1234.5".
func ParseCurrency(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, token := range []string{CurrencySymbol, "INR", "inr", "Rs.", "rs.", "Rs", "rs"} {
		s = strings.ReplaceAll(s, token, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	val, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		val = val.Neg()
	}
	return val, nil
}

// groupIndian inserts separators after the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

func FormatWeight(weight decimal.Decimal, unit string) string {
	if unit == "" {
		unit = "kg"
	}
	return weight.StringFixed(3) + " " + unit
}

func FormatQuantity(quantity decimal.Decimal, unit string) string {
	if unit == "" {
		unit = "bags"
	}
	return quantity.String() + " " + unit
}

func FormatPercentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// DaysBetween returns the absolute number of days between two instants, rounded up.
func DaysBetween(start, end time.Time) int {
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// NormalizePhone validates a phone number for the region and returns it in E.164.
func NormalizePhone(phone, region string) (string, error) {
	if region == "" {
		region = DefaultRegion
	}
	p, err := libphonenumber.Parse(phone, region)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid for region %s", phone, region)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// FormatPhone renders ten-digit numbers as 98765-43210 and leaves anything else as given.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, "91") {
		cleaned = cleaned[2:]
	}
	if len(cleaned) == 10 {
		return cleaned[:5] + "-" + cleaned[5:]
	}
	return phone
}
