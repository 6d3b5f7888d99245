package loyalty

import "github.com/shopspring/decimal"

// EligibleDiscount returns the discount a customer with the given point
// balance may redeem against a cart total under the policy. Customers below
// the threshold get no discount; eligible customers get the policy value
// capped at the cart total, so a discount never exceeds what is being paid.
func EligibleDiscount(p Policy, points int64, cartTotal decimal.Decimal) decimal.Decimal {
	if points < p.PointsRequired {
		return decimal.Zero
	}
	d := decimal.Min(p.DiscountValue, cartTotal)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// AccruedPoints returns the points earned for a paid amount: one point per
// whole currency unit, fractions truncated.
func AccruedPoints(paid decimal.Decimal) int64 {
	if paid.IsNegative() {
		return 0
	}
	return paid.Floor().IntPart()
}
