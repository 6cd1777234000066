package engine

import (
	"fmt"
	"strings"
)

// FormatAmount renders an integer cent amount as "AUD 1,250.00" for use in
// rendered messages and in-app notifications.
func FormatAmount(cents int64, currency string) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if negative {
		sign = "-"
	}

	currency = strings.TrimSpace(strings.ToUpper(currency))
	if currency == "" {
		return fmt.Sprintf("%s%s.%02d", sign, grouped.String(), frac)
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, grouped.String(), frac)
}
