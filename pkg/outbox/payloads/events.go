package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLifecycleEvent is the payload for cart.abandoned / cart.expired /
// cart.merged events.
type CartLifecycleEvent struct {
	CartID    uuid.UUID  `json:"cartId"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	SessionID *string    `json:"sessionId,omitempty"`
	Status    string     `json:"status"`
	ChangedAt time.Time  `json:"changedAt"`
}

// CartConvertedEvent is published when checkout turns a cart into an order.
type CartConvertedEvent struct {
	CartID      uuid.UUID       `json:"cartId"`
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	ConvertedAt time.Time       `json:"convertedAt"`
}

// CouponRedeemedEvent records a successful coupon redemption.
type CouponRedeemedEvent struct {
	CouponID       uuid.UUID       `json:"couponId"`
	CouponCode     string          `json:"couponCode"`
	OrderID        uuid.UUID       `json:"orderId"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CustomerEmail  string          `json:"customerEmail"`
	RedeemedAt     time.Time       `json:"redeemedAt"`
}
