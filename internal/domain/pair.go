package domain

import (
	"fmt"
	"strings"
)

// Pair identifies a market as an explicit base/quote asset couple.
// Carrying both fields on every order avoids recovering assets from a
// display string later.
type Pair struct {
	Base  string `json:"base" yaml:"base"`
	Quote string `json:"quote" yaml:"quote"`
}

// ParsePair parses a "BASE/QUOTE" display string.
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "/")
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}, nil
}

// String returns the display form, e.g. "BTC/USDT".
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Symbol returns the Binance REST symbol, e.g. "BTCUSDT".
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// StreamSymbol returns the lowercase symbol used in stream paths.
func (p Pair) StreamSymbol() string {
	return strings.ToLower(p.Symbol())
}

// IsZero reports whether the pair is unset.
func (p Pair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
