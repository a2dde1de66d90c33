package pricing

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders an amount with thousands separators, e.g. "PKR 50,000,000".
func FormatPrice(currency string, amount int64) string {
	s := printer.Sprintf("%d", amount)
	if currency = strings.TrimSpace(currency); currency == "" {
		return s
	}
	return currency + " " + s
}

// FormatRate renders a per-unit rate rounded to whole currency units.
func FormatRate(currency string, rate float64) string {
	s := printer.Sprintf("%.0f", rate)
	if currency = strings.TrimSpace(currency); currency == "" {
		return s
	}
	return currency + " " + s
}
