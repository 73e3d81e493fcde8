package domain

import (
	"fmt"
	"strings"
)

// Money is an exact amount in a currency's minor units. Arithmetic stays
// in int64 so decimal inputs round-trip without float drift.
type Money struct {
	Amount   int64
	Currency string
}

// minorUnitExponents lists the currencies whose minor unit is not the
// usual two decimal places. Everything else defaults to 2.
var minorUnitExponents = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// Exponent returns the number of decimal places of the currency's minor
// unit.
func Exponent(currency string) int {
	if e, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

var pow10 = [...]int64{1, 10, 100, 1000}

// ParseAmount parses a decimal string like "90.00" into Money without
// going through floating point. More fractional digits than the
// currency's minor unit allows is an error, not a silent rounding.
func ParseAmount(value, currency string) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("currency is required")
	}
	s := strings.TrimSpace(value)
	if s == "" {
		return Money{}, fmt.Errorf("amount is required")
	}

	negative := false
	if s[0] == '+' || s[0] == '-' {
		negative = s[0] == '-'
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return Money{}, fmt.Errorf("invalid amount %q", value)
	}
	if intPart == "" {
		intPart = "0"
	}

	exp := Exponent(currency)
	if len(fracPart) > exp {
		return Money{}, fmt.Errorf("amount %q has more than %d decimal places for %s", value, exp, currency)
	}

	var units int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return Money{}, fmt.Errorf("invalid amount %q", value)
		}
		d := int64(c - '0')
		if units > (1<<63-1-d)/10 {
			return Money{}, fmt.Errorf("amount %q is out of range", value)
		}
		units = units*10 + d
	}

	var frac int64
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return Money{}, fmt.Errorf("invalid amount %q", value)
		}
		frac = frac*10 + int64(c-'0')
	}
	// pad implicit trailing zeros: "1.5" in a 2-exponent currency is 150
	for i := len(fracPart); i < exp; i++ {
		frac *= 10
	}

	scale := pow10[exp]
	if units > (1<<63-1-frac)/scale {
		return Money{}, fmt.Errorf("amount %q is out of range", value)
	}
	minor := units*scale + frac
	if negative {
		minor = -minor
	}
	return Money{Amount: minor, Currency: strings.ToUpper(currency)}, nil
}

// String renders the amount as a plain decimal with the currency's full
// minor-unit precision, e.g. {9000 EUR} -> "90.00".
func (m Money) String() string {
	exp := Exponent(m.Currency)
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if exp == 0 {
		return fmt.Sprintf("%s%d", sign, amount)
	}
	scale := pow10[exp]
	return fmt.Sprintf("%s%d.%0*d", sign, amount/scale, exp, amount%scale)
}

// Add returns m + other. Mixing currencies is an error.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// SplitEqual returns the per-head share of m divided n ways, truncated
// to the minor unit. The residual below one minor unit per head is
// dropped, so share*n may be up to n-1 minor units short of m.
func (m Money) SplitEqual(n int) (Money, error) {
	if n <= 0 {
		return Money{}, fmt.Errorf("cannot split among %d participants", n)
	}
	return Money{Amount: m.Amount / int64(n), Currency: m.Currency}, nil
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}
