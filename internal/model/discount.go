package model

import "github.com/shopspring/decimal"

// DiscountKind selects how a discount value is applied.
type DiscountKind string

const (
	DiscountAmount  DiscountKind = "amount"
	DiscountPercent DiscountKind = "percent"
)

// Discount is a resolved discount code. Value is a currency amount for
// DiscountAmount and a percentage (0-100) for DiscountPercent.
type Discount struct {
	Code  string          `json:"code" yaml:"code"`
	Kind  DiscountKind    `json:"kind" yaml:"kind"`
	Value decimal.Decimal `json:"value" yaml:"-"`
}
