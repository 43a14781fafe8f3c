package consensus

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Amount is a signed quantity of base units. Valid amounts lie in [0, MAX_MONEY].
type Amount int64

const (
	COIN Amount = 100_000_000
	CENT Amount = 1_000_000

	// MAX_MONEY is the total-supply ceiling. Not a hard supply cap, only a
	// sanity bound on any single value or sum.
	MAX_MONEY Amount = 21_000_000 * COIN
)

func MoneyRange(v Amount) bool {
	return v >= 0 && v <= MAX_MONEY
}

// AddAmounts returns a+b. Both operands and the sum must be in money range.
func AddAmounts(a, b Amount) (Amount, error) {
	if !MoneyRange(a) || !MoneyRange(b) {
		return 0, ErrValueOutOfRange
	}
	sum := a + b
	if !MoneyRange(sum) {
		return 0, ErrValueOutOfRange
	}
	return sum, nil
}

// WholeFrac splits the amount into the integer coin part and the remaining
// base units, with Go's truncated division semantics.
func (a Amount) WholeFrac() (int64, int64) {
	return int64(a / COIN), int64(a % COIN)
}

// FormatMoney renders a as a decimal coin value with at least two fractional
// digits and trailing zeros trimmed, e.g. 1.50 or 0.00001.
func FormatMoney(a Amount) string {
	s := decimal.New(int64(a), -8).StringFixed(8)
	dot := strings.IndexByte(s, '.')
	end := len(s)
	for end > dot+3 && s[end-1] == '0' {
		end--
	}
	return s[:end]
}

// ParseMoney parses a decimal coin value into base units. More than eight
// fractional digits or values outside money range are rejected.
func ParseMoney(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse money %q", s)
	}
	units := d.Shift(8)
	if !units.IsInteger() {
		return 0, errors.Errorf("parse money %q: too many decimal places", s)
	}
	if units.GreaterThan(decimal.NewFromInt(int64(MAX_MONEY))) || units.IsNegative() {
		return 0, errors.Wrapf(ErrValueOutOfRange, "parse money %q", s)
	}
	return Amount(units.IntPart()), nil
}
