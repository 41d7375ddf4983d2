// Package phone normalises Kenyan mobile numbers to the 2547XXXXXXXX form
// used as the customer lookup key for mobile-money references.
package phone

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid_phone_number")

const countryCode = "254"

func Sanitize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, countryCode) && len(digits) == 12:
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = countryCode + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		digits = countryCode + digits
	default:
		return "", ErrInvalidPhone
	}

	if digits[3] != '7' && digits[3] != '1' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// Matches reports whether a free-form reference refers to the same number.
func Matches(reference, number string) bool {
	a, err := Sanitize(reference)
	if err != nil {
		return false
	}
	b, err := Sanitize(number)
	if err != nil {
		return false
	}
	return a == b
}
