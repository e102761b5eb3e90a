// Package pricing computes the final charge for an order from a base price
// and an optional coupon reservation. Resolution is a pure function with no
// storage access.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ucademy/orderflow/internal/domain/coupon"
)

// ErrNegativePrice is returned when the base price is negative.
var ErrNegativePrice = errors.New("base price must not be negative")

var hundred = decimal.NewFromInt(100)

// Charge is the resolved breakdown of what the buyer pays.
type Charge struct {
	Amount   decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Resolve computes the charge for basePrice with the given reservation.
// A nil reservation means no coupon: discount is zero. Percent coupons
// discount floor(basePrice * value / 100); amount coupons discount
// min(value, basePrice). Total is floored at zero.
func Resolve(basePrice decimal.Decimal, res *coupon.Reservation) (Charge, error) {
	if basePrice.IsNegative() {
		return Charge{}, ErrNegativePrice
	}

	discount := decimal.Zero
	if res != nil {
		switch res.Kind {
		case coupon.KindPercent:
			discount = basePrice.Mul(res.Value).Div(hundred).Floor()
		case coupon.KindAmount:
			discount = decimal.Min(res.Value, basePrice)
		default:
			return Charge{}, errors.Errorf("unsupported coupon kind: %q", res.Kind)
		}
		if discount.IsNegative() {
			discount = decimal.Zero
		}
	}

	total := basePrice.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Charge{
		Amount:   basePrice,
		Discount: discount,
		Total:    total,
	}, nil
}
