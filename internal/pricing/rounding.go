package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundTo rounds v to the nearest multiple of step, half away from zero.
// Non-finite values are returned unchanged; callers check them.
func RoundTo(v, step float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if step <= 0 {
		step = 1
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	// decimal.Round is half away from zero
	f, _ := d.Div(s).Round(0).Mul(s).Float64()
	return f
}

// RoundTotal rounds price*area to whole currency units.
func RoundTotal(price, area float64) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(area)).Round(0).Float64()
	return f
}

// Round2 is used for confidence values, which are sums of decimal increments.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
