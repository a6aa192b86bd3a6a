// Package phone canonicalizes phone numbers into digits-only dialable strings.
package phone

import (
	"fmt"
	"net/url"
	"strings"

	"whatsapp-service/internal/domain"
)

const (
	minDigits = 10
	maxDigits = 15 // E.164
)

type Normalizer struct {
	DefaultCountryCode string
}

func NewNormalizer(defaultCountryCode string) (*Normalizer, error) {
	if err := ValidateCountryCode(defaultCountryCode); err != nil {
		return nil, err
	}
	return &Normalizer{DefaultCountryCode: defaultCountryCode}, nil
}

// ValidateCountryCode accepts 1-3 digits without a leading zero.
func ValidateCountryCode(cc string) error {
	if len(cc) < 1 || len(cc) > 3 {
		return fmt.Errorf("country code %q must be 1-3 digits", cc)
	}
	if cc[0] == '0' {
		return fmt.Errorf("country code %q must not start with 0", cc)
	}
	for i := 0; i < len(cc); i++ {
		if cc[i] < '0' || cc[i] > '9' {
			return fmt.Errorf("country code %q must be digits only", cc)
		}
	}
	return nil
}

// Normalize strips formatting and returns a canonical number. A bare
// 10-digit national number gets the default country code; longer numbers
// are taken as already carrying one. Leading zeros are significant.
func (n *Normalizer) Normalize(raw string) (string, error) {
	digits := digitsOnly(raw)

	switch {
	case len(digits) < minDigits:
		return "", fmt.Errorf("%w: %q has %d digits", domain.ErrInvalidPhone, raw, len(digits))
	case len(digits) == minDigits:
		digits = n.DefaultCountryCode + digits
	}

	if len(digits) > maxDigits {
		return "", fmt.Errorf("%w: %q exceeds %d digits", domain.ErrInvalidPhone, raw, maxDigits)
	}
	return digits, nil
}

// WebLink builds the WhatsApp Web fallback URL for a manual send.
func (n *Normalizer) WebLink(raw, text string) (string, error) {
	num, err := n.Normalize(raw)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("phone", num)
	q.Set("text", text)
	return "https://web.whatsapp.com/send?" + q.Encode(), nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
