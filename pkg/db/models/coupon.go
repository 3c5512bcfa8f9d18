package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
)

// Coupon is a reusable discount rule identified by a case-insensitive code.
// Codes are stored uppercase; lookups normalize before querying.
type Coupon struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code                  string             `gorm:"column:code;uniqueIndex;not null"`
	Name                  string             `gorm:"column:name;not null"`
	Type                  enums.CouponType   `gorm:"column:type;not null"`
	DiscountValue         decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinimumOrderAmount    *decimal.Decimal   `gorm:"column:minimum_order_amount;type:numeric(12,2)"`
	MaximumDiscount       *decimal.Decimal   `gorm:"column:maximum_discount;type:numeric(12,2)"`
	UsageLimit            *int               `gorm:"column:usage_limit"`
	UsageLimitPerCustomer *int               `gorm:"column:usage_limit_per_customer"`
	TimesUsed             int                `gorm:"column:times_used;not null;default:0"`
	ValidFrom             time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil            time.Time          `gorm:"column:valid_until;not null"`
	StoreID               *uuid.UUID         `gorm:"column:store_id;type:uuid"`
	Status                enums.CouponStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	FirstTimeCustomerOnly bool               `gorm:"column:first_time_customer_only;not null;default:false"`
	AppliesToSaleItems    bool               `gorm:"column:applies_to_sale_items;not null;default:true"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

var oneHundred = decimal.NewFromInt(100)

// CanBeUsed reports whether the coupon is redeemable at the given instant:
// active status, inside the validity window, and under the global usage cap.
func (c *Coupon) CanBeUsed(now time.Time) bool {
	if c.Status != enums.CouponStatusActive {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return false
	}
	return true
}

// CalculateDiscount computes the discount for the given order amount. It is
// a pure function: a zero result can mean either "inapplicable" or "computed
// to zero"; callers disambiguate with CanBeUsed.
//
// FREE_SHIPPING and BUY_ONE_GET_ONE yield zero here; they are resolved by
// the shipping and line-item layers, not by the generic amount calculator.
func (c *Coupon) CalculateDiscount(orderAmount decimal.Decimal) decimal.Decimal {
	if c.MinimumOrderAmount != nil && orderAmount.LessThan(*c.MinimumOrderAmount) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case enums.CouponTypePercentage:
		discount = orderAmount.Mul(c.DiscountValue).Div(oneHundred).Round(2)
	case enums.CouponTypeFixedAmount:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
		discount = *c.MaximumDiscount
	}
	if discount.GreaterThan(orderAmount) {
		discount = orderAmount
	}
	return discount
}

// IncrementUsage bumps the redemption counter, flipping the status to
// USED_UP when the cap is reached. At-most-once semantics per checkout are
// the caller's responsibility; the repository performs the equivalent
// conditional update under concurrency.
func (c *Coupon) IncrementUsage() {
	c.TimesUsed++
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		c.Status = enums.CouponStatusUsedUp
	}
}
