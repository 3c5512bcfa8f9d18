package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
)

// Cart is the aggregate root for one shopping session. Exactly one of
// UserID/SessionID is populated; the check constraint in the schema enforces
// the same rule at the storage layer.
type Cart struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID            *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID         *string          `gorm:"column:session_id;index"`
	Status            enums.CartStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	Currency          enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	Subtotal          decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount         decimal.Decimal  `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingFee       decimal.Decimal  `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0"`
	DiscountAmount    decimal.Decimal  `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	CouponDiscount    decimal.Decimal  `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	Total             decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	AppliedCouponCode *string          `gorm:"column:applied_coupon_code"`
	ExpiresAt         *time.Time       `gorm:"column:expires_at"`
	MergedFromSession *string          `gorm:"column:merged_from_session"`
	Items             []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsTerminal reports whether the cart may no longer be mutated.
func (c *Cart) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// IsExpired reports whether ExpiresAt is set and in the past. It does not
// transition state; the sweep job performs the EXPIRED transition.
func (c *Cart) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// EnsureMutable rejects writes against terminal carts.
func (c *Cart) EnsureMutable() error {
	if c.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is in a terminal state").
			WithDetails(map[string]any{"status": c.Status.String()})
	}
	return nil
}

// AddItem appends a line and recalculates totals. Dedup against existing
// (product, variant) lines is the caller's responsibility; the aggregate
// assumes the line is new and its quantity is at least 1.
func (c *Cart) AddItem(item CartItem) error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	item.CartID = c.ID
	item.RecalculateLineTotal()
	c.Items = append(c.Items, item)
	c.RecalculateTotals()
	return nil
}

// RemoveItem detaches the line with the given id and recalculates totals.
func (c *Cart) RemoveItem(itemID uuid.UUID) error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	c.RecalculateTotals()
	return nil
}

// ClearItems detaches every line and resets the derived totals.
func (c *Cart) ClearItems() error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	c.Items = nil
	c.RecalculateTotals()
	return nil
}

// RecalculateTotals recomputes subtotal and total from the current item set.
// Saved-for-later lines are excluded from the subtotal. The method is
// idempotent: it only writes the derived fields.
func (c *Cart) RecalculateTotals() {
	subtotal := decimal.Zero
	for i := range c.Items {
		if c.Items[i].SavedForLater {
			continue
		}
		subtotal = subtotal.Add(c.Items[i].TotalPrice)
	}
	c.Subtotal = subtotal

	total := subtotal.
		Add(c.TaxAmount).
		Add(c.ShippingFee).
		Sub(c.DiscountAmount).
		Sub(c.CouponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	c.Total = total
}

// ApplyCoupon records the coupon code and discount, then recalculates. The
// discount value is trusted; validation is the coupon evaluator's job. Only
// one coupon may be applied at a time.
func (c *Cart) ApplyCoupon(code string, discount decimal.Decimal) error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	if c.AppliedCouponCode != nil && *c.AppliedCouponCode != code {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "another coupon is already applied")
	}
	if discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon discount cannot be negative")
	}
	c.AppliedCouponCode = &code
	c.CouponDiscount = discount
	c.RecalculateTotals()
	return nil
}

// RemoveCoupon clears the coupon fields and recalculates.
func (c *Cart) RemoveCoupon() error {
	if err := c.EnsureMutable(); err != nil {
		return err
	}
	c.AppliedCouponCode = nil
	c.CouponDiscount = decimal.Zero
	c.RecalculateTotals()
	return nil
}

// MarkAsAbandoned flags a stale active cart. ABANDONED is not terminal; a
// buyer returning to the site resumes the same cart.
func (c *Cart) MarkAsAbandoned() error {
	if c.Status != enums.CartStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only active carts can be abandoned")
	}
	c.Status = enums.CartStatusAbandoned
	return nil
}

// MarkAsConverted finalizes the cart after checkout.
func (c *Cart) MarkAsConverted() error {
	if c.Status != enums.CartStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only active carts can be converted")
	}
	c.Status = enums.CartStatusConverted
	return nil
}

// MarkAsMerged retires a guest cart after its items were folded into a user
// cart, keeping a back-reference to the origin session.
func (c *Cart) MarkAsMerged(fromSessionID string) error {
	if c.Status != enums.CartStatusActive && c.Status != enums.CartStatusAbandoned {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart cannot be merged from its current state")
	}
	c.Status = enums.CartStatusMerged
	c.MergedFromSession = &fromSessionID
	return nil
}

// MarkAsExpired is issued by the lifecycle sweep once ExpiresAt has passed.
func (c *Cart) MarkAsExpired() error {
	if c.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already terminal")
	}
	c.Status = enums.CartStatusExpired
	return nil
}

// FindItem returns the active line matching (product, variant), or nil.
// Saved-for-later lines do not participate in dedup.
func (c *Cart) FindItem(productID uuid.UUID, variantID *uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].SavedForLater {
			continue
		}
		if c.Items[i].Matches(productID, variantID) {
			return &c.Items[i]
		}
	}
	return nil
}
