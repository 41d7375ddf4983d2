// Package money converts between decimal strings and int64 minor units.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitExp = 2

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrTooPrecise    = errors.New("amount_too_precise")
	ErrOverflow      = errors.New("amount_overflow")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Parse parses a decimal string such as "150.00" into minor units.
func Parse(value string) (int64, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if value == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromDecimal(d)
}

func FromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, ErrInvalidAmount
	}
	return scaled.IntPart(), nil
}

// Add returns a+b, or ErrOverflow when the sum leaves the int64 range.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Mul returns a*b, or ErrOverflow when the product leaves the int64 range.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	product := a * b
	if product/b != a {
		return 0, ErrOverflow
	}
	return product, nil
}

// ToDecimal converts minor units back into a decimal amount.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExp)
}

// String renders minor units as a plain two-decimal string.
func String(minor int64) string {
	return ToDecimal(minor).StringFixed(minorUnitExp)
}

// Format renders minor units as "KES 1,234.50". Negative values keep the sign.
func Format(currency string, minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	fixed := ToDecimal(minor).StringFixed(minorUnitExp)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	currency = strings.TrimSpace(currency)
	if currency == "" {
		return sign + b.String() + "." + frac
	}
	return currency + " " + sign + b.String() + "." + frac
}
