package domain

import (
	"regexp"
	"strings"
)

// Yahoo-style symbols: AAPL, BRK-B, RY.TO, ^GSPC, EURUSD=X.
var tickerPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-]{0,11}(=X)?$`)

// NormalizeTicker trims and upper-cases a symbol.
func NormalizeTicker(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsValidTicker reports whether symbol, after normalization, looks like a
// listing symbol.
func IsValidTicker(symbol string) bool {
	return tickerPattern.MatchString(NormalizeTicker(symbol))
}
