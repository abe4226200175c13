// Package money implements the fixed-point decimal representation required
// for every price, quantity, and cash amount in the core.
package money

import (
	"strings"

	"github.com/govalues/decimal"
)

// Amount is a fixed-point decimal value. The zero value is 0.
type Amount = decimal.Decimal

// Zero is the additive identity.
var Zero Amount

// Parse parses a decimal literal such as "1.10050".
func Parse(s string) (Amount, error) {
	return decimal.Parse(s)
}

// MustParse is Parse but panics on error; reserved for constants derived
// from literals known at compile time (config defaults, test fixtures).
func MustParse(s string) Amount {
	return decimal.MustParse(s)
}

// FromFloat builds an Amount from a float64, used only at the boundary with
// externals (Rate Provider, Liquidity Provider quotes) that hand back
// float64 wire values.
func FromFloat(f float64) (Amount, error) {
	return decimal.NewFromFloat64(f)
}

// QtyPrecision returns the quantity decimal precision for a currency pair:
// 0 fractional digits when the base currency is JPY, 2 otherwise.
func QtyPrecision(pair string) int {
	base, _ := Split(pair)
	if base == "JPY" {
		return 0
	}
	return 2
}

// PricePrecision returns the price decimal precision for a currency pair:
// 3 fractional digits when either leg is JPY, 5 otherwise.
func PricePrecision(pair string) int {
	if InvolvesJPY(pair) {
		return 3
	}
	return 5
}

// InvolvesJPY reports whether either leg of "BASE/QUOTE" is JPY.
func InvolvesJPY(pair string) bool {
	base, quote := Split(pair)
	return base == "JPY" || quote == "JPY"
}

// Split splits "BASE/QUOTE" into its two legs. Callers that already
// validated the pair via oms/validation.go can ignore a missing separator;
// Split returns the whole string as base with an empty quote in that case.
func Split(pair string) (base, quote string) {
	idx := strings.IndexByte(pair, '/')
	if idx < 0 {
		return pair, ""
	}
	return pair[:idx], pair[idx+1:]
}

// RoundQty rounds an amount to the quantity precision for pair, half-even.
func RoundQty(pair string, a Amount) Amount {
	return a.Round(QtyPrecision(pair))
}

// RoundPrice rounds an amount to the price precision for pair, half-even.
func RoundPrice(pair string, a Amount) Amount {
	return a.Round(PricePrecision(pair))
}

// Mul multiplies two amounts, propagating an error rather than panicking —
// every arithmetic boundary in the core surfaces overflow as a Fatal error
// (spec §7) instead of crashing the process.
func Mul(a, b Amount) (Amount, error) {
	return a.Mul(b)
}

// Add sums a variadic list of amounts, short-circuiting on the first error.
func Add(amounts ...Amount) (Amount, error) {
	total := Zero
	var err error
	for _, a := range amounts {
		total, err = total.Add(a)
		if err != nil {
			return Zero, err
		}
	}
	return total, nil
}

// Sub subtracts b from a.
func Sub(a, b Amount) (Amount, error) {
	return a.Sub(b)
}

// Quo divides a by b.
func Quo(a, b Amount) (Amount, error) {
	return a.Quo(b)
}

// Cmp compares a to b: -1, 0, or 1.
func Cmp(a, b Amount) int {
	return a.Cmp(b)
}

// GreaterThan reports a > b.
func GreaterThan(a, b Amount) bool {
	return a.Cmp(b) > 0
}

// LessThan reports a < b.
func LessThan(a, b Amount) bool {
	return a.Cmp(b) < 0
}

// GreaterThanOrEqual reports a >= b.
func GreaterThanOrEqual(a, b Amount) bool {
	return a.Cmp(b) >= 0
}

// LessThanOrEqual reports a <= b.
func LessThanOrEqual(a, b Amount) bool {
	return a.Cmp(b) <= 0
}

// ToFloat64 converts a to float64 for boundaries that require it (scoring
// formulas, metrics gauges). Never used for money movement.
func ToFloat64(a Amount) float64 {
	f, _ := a.Float64()
	return f
}

// Abs returns the absolute value of a.
func Abs(a Amount) Amount {
	return a.Abs()
}

// Neg returns -a.
func Neg(a Amount) Amount {
	return a.Neg()
}

// IsZero reports whether a == 0.
func IsZero(a Amount) bool {
	return a.IsZero()
}

// Sign returns -1, 0, or 1.
func Sign(a Amount) int {
	return a.Sign()
}

// GreaterThanAbsThreshold reports |a| > threshold, used for the netting
// batch's "only non-zero (|amount|>0.01) entries" rule (spec §4.3).
func GreaterThanAbsThreshold(a Amount, threshold Amount) bool {
	return a.Abs().Cmp(threshold) > 0
}
