package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	cases := map[string]struct {
		cents    int64
		currency string
		want     string
	}{
		"usd":      {cents: 125000, currency: "usd", want: "$1,250.00"},
		"small":    {cents: 5, currency: "EUR", want: "€0.05"},
		"unknown":  {cents: 1234567, currency: "CHF", want: "12,345.67 CHF"},
		"negative": {cents: -999, currency: "", want: "-9.99"},
		"million":  {cents: 100000000, currency: "GBP", want: "£1,000,000.00"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Amount(tc.cents, tc.currency))
		})
	}
}
