package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
)

// Order is the converted form of a cart. Only the fields the cart engine
// produces are modeled; payment and fulfillment columns live with their own
// services.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string            `gorm:"column:order_number;uniqueIndex;not null"`
	CartID         uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	UserID         *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	SessionID      *string           `gorm:"column:session_id"`
	CustomerEmail  string            `gorm:"column:customer_email;not null;index"`
	Currency       enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal   `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingFee    decimal.Decimal   `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	CouponDiscount decimal.Decimal   `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
