package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
)

// OrderCoupon is the append-only ledger row recording a coupon's realized
// effect on a completed order. Code and name are frozen copies so the record
// survives later coupon edits. Rows are never updated or deleted.
type OrderCoupon struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_order_coupons_order_coupon,priority:1"`
	CouponID            uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:uq_order_coupons_order_coupon,priority:2"`
	CouponCode          string          `gorm:"column:coupon_code;not null"`
	CouponName          string          `gorm:"column:coupon_name;not null"`
	DiscountAmount      decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	OriginalOrderAmount decimal.Decimal `gorm:"column:original_order_amount;type:numeric(12,2);not null"`
	Currency            enums.Currency  `gorm:"column:currency;not null;default:'USD'"`
	CustomerEmail       string          `gorm:"column:customer_email;not null;index"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}
