package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/types"
)

// CartItem is one product line inside a Cart. UnitPrice is a snapshot taken
// at add-time and never rewritten from live product data (price protection).
type CartItem struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID              `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product_variant,priority:1"`
	ProductID       uuid.UUID              `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_cart_items_cart_product_variant,priority:2"`
	VariantID       *uuid.UUID             `gorm:"column:variant_id;type:uuid;uniqueIndex:uq_cart_items_cart_product_variant,priority:3"`
	Quantity        int                    `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ItemDiscount    decimal.Decimal        `gorm:"column:item_discount;type:numeric(12,2);not null;default:0"`
	TotalPrice      decimal.Decimal        `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	IsGift          bool                   `gorm:"column:is_gift;not null;default:false"`
	SavedForLater   bool                   `gorm:"column:saved_for_later;not null;default:false"`
	SelectedOptions types.ItemOptions      `gorm:"column:selected_options;type:jsonb;serializer:json"`
	Warnings        types.CartItemWarnings `gorm:"column:warnings;type:jsonb;serializer:json"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// RecalculateLineTotal recomputes the line total from the snapshot price,
// quantity and item-level discount, clamping at zero.
func (i *CartItem) RecalculateLineTotal() {
	total := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.ItemDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	i.TotalPrice = total
}

// Matches reports whether the line refers to the same (product, variant).
func (i *CartItem) Matches(productID uuid.UUID, variantID *uuid.UUID) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariantID == nil && variantID == nil {
		return true
	}
	if i.VariantID == nil || variantID == nil {
		return false
	}
	return *i.VariantID == *variantID
}
