package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product carries the live catalog data the cart engine reads through the
// inventory collaborator: availability, stock, and current price. The stored
// cart snapshot is compared against Price but never overwritten from it.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	StoreID        *uuid.UUID       `gorm:"column:store_id;type:uuid;index"`
	SKU            string           `gorm:"column:sku;uniqueIndex;not null"`
	Name           string           `gorm:"column:name;not null"`
	Price          decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice *decimal.Decimal `gorm:"column:compare_at_price;type:numeric(12,2)"`
	OnSale         bool             `gorm:"column:on_sale;not null;default:false"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	StockQty       int              `gorm:"column:stock_qty;not null;default:0"`
	Categories     pq.StringArray   `gorm:"column:categories;type:text[]"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
