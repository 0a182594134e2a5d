// Package phone normalizes phone numbers for channel delivery and sender lookup.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const DefaultRegion = "US"

var ErrInvalidNumber = errors.New("invalid_phone_number")

// NormalizeE164 formats input as E.164, resolving national numbers against region.
func NormalizeE164(input, region string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidNumber
	}
	// gateway JIDs look like 6281234567890@s.whatsapp.net
	if at := strings.IndexByte(trimmed, '@'); at > 0 {
		trimmed = "+" + strings.TrimPrefix(trimmed[:at], "+")
	}
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalidNumber
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// Digits returns the E.164 number without the leading plus, as gateways expect.
func Digits(e164 string) string {
	return strings.TrimPrefix(strings.TrimSpace(e164), "+")
}
