package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceToTicks converts a decimal price into an integer number of ticks.
// It returns an error when the tick size is not positive or the price is
// not an exact multiple of it.
func PriceToTicks(price, tick decimal.Decimal) (int64, error) {
	if !tick.IsPositive() {
		return 0, fmt.Errorf("tick size must be positive, got %s", tick)
	}
	if !price.Mod(tick).IsZero() {
		return 0, fmt.Errorf("price %s is not a multiple of tick size %s", price, tick)
	}
	return price.Div(tick).IntPart(), nil
}

// TicksToPrice converts a tick count back into a decimal price.
func TicksToPrice(ticks int64, tick decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(tick)
}

// FormatTicks renders a tick count as a price string with as many decimal
// places as the tick size carries (e.g. 9950 ticks of 0.01 → "99.50").
func FormatTicks(ticks int64, tick decimal.Decimal) string {
	places := int32(0)
	if exp := tick.Exponent(); exp < 0 {
		places = -exp
	}
	return TicksToPrice(ticks, tick).StringFixed(places)
}
