package format

import (
	"fmt"
	"strings"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"IDR": "Rp",
}

// Amount renders minor units as a human-readable amount, e.g. "$1,250.00".
func Amount(cents int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := groupThousands(cents / 100)
	amount := fmt.Sprintf("%s%s.%02d", sign, whole, cents%100)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount
	}
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func groupThousands(n int64) string {
	raw := fmt.Sprintf("%d", n)
	if len(raw) <= 3 {
		return raw
	}
	var b strings.Builder
	lead := len(raw) % 3
	if lead > 0 {
		b.WriteString(raw[:lead])
	}
	for i := lead; i < len(raw); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(raw[i : i+3])
	}
	return b.String()
}
