// Package pricing computes booking amounts. Everything here is pure.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"courtbook/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrUnknownDiscount = errors.New("unknown discount code")
)

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown of a booking.
type Quote struct {
	BaseAmount        decimal.Decimal `json:"base_amount"`
	AdditionalCharges decimal.Decimal `json:"additional_charges"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// Price computes the quote for durationHours at ratePerHour. Amounts are
// rounded to cents and the total is never negative.
func Price(ratePerHour, durationHours decimal.Decimal, addOns []model.AddOn, discount *model.Discount) (Quote, error) {
	if ratePerHour.IsNegative() {
		return Quote{}, fmt.Errorf("%w: rate per hour %s", ErrNegativeAmount, ratePerHour)
	}

	base := ratePerHour.Mul(durationHours).Round(2)

	additional := decimal.Zero
	for _, a := range addOns {
		if a.Amount.IsNegative() {
			return Quote{}, fmt.Errorf("%w: add-on %q", ErrNegativeAmount, a.Name)
		}
		additional = additional.Add(a.Amount)
	}
	additional = additional.Round(2)

	subtotal := base.Add(additional)
	discountAmount, err := discountFor(subtotal, discount)
	if err != nil {
		return Quote{}, err
	}

	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		BaseAmount:        base,
		AdditionalCharges: additional,
		DiscountAmount:    discountAmount,
		TotalAmount:       total,
	}, nil
}

func discountFor(subtotal decimal.Decimal, d *model.Discount) (decimal.Decimal, error) {
	if d == nil {
		return decimal.Zero, nil
	}
	if d.Value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: discount %q", ErrNegativeAmount, d.Code)
	}

	switch d.Kind {
	case model.DiscountAmount:
		return d.Value.Round(2), nil
	case model.DiscountPercent:
		return subtotal.Mul(d.Value).Div(hundred).Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("discount %q has unknown kind %q", d.Code, d.Kind)
	}
}

// StaticDiscounts resolves codes from a fixed table. Lookups are case-insensitive.
type StaticDiscounts map[string]model.Discount

func NewStaticDiscounts(discounts []model.Discount) StaticDiscounts {
	out := make(StaticDiscounts, len(discounts))
	for _, d := range discounts {
		out[normalizeCode(d.Code)] = d
	}
	return out
}

// ResolveDiscount returns nil for an empty code.
func (s StaticDiscounts) ResolveDiscount(code string) (*model.Discount, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	d, ok := s[normalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDiscount, code)
	}
	return &d, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
