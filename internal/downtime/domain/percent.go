package downtime

import (
	"math"
	"math/bits"
	"strconv"
)

// Percent is a percentage held in hundredths (18.75% is 1875), so two-decimal
// rounding is exact and complementary percentages sum to exactly 100.
type Percent int64

const (
	percentScale   = 100
	percentHundred = Percent(100 * percentScale)
)

// Float returns the percentage as a float, e.g. 18.75.
func (p Percent) Float() float64 {
	return float64(p) / percentScale
}

// String formats the percentage with two decimals.
func (p Percent) String() string {
	return strconv.FormatFloat(p.Float(), 'f', 2, 64)
}

// MarshalJSON renders the percentage as a decimal number.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(p.Float(), 'f', -1, 64)), nil
}

// UnmarshalJSON parses a decimal number.
func (p *Percent) UnmarshalJSON(data []byte) error {
	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*p = Percent(math.Round(value * percentScale))
	return nil
}

// ratioPercent returns round(part/whole*100, 2) with halves rounded up,
// saturating at 100. whole must be positive.
// The product is carried in 128 bits so no int64 input overflows.
func ratioPercent(part, whole int64) Percent {
	if part <= 0 {
		return 0
	}
	if part >= whole {
		return percentHundred
	}
	hi, lo := bits.Mul64(uint64(part), 2*uint64(percentHundred))
	lo, carry := bits.Add64(lo, uint64(whole), 0)
	hi += carry
	quotient, _ := bits.Div64(hi, lo, 2*uint64(whole))
	return Percent(quotient)
}
