package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
)

// Availability is the live catalog view the cart engine consumes: current
// price and stock for a (product, variant) pair. It is read-only; cart
// snapshots are never rewritten from it.
type Availability struct {
	ProductID    uuid.UUID
	VariantID    *uuid.UUID
	ProductName  string
	Active       bool
	OnSale       bool
	AvailableQty int
	CurrentPrice decimal.Decimal
}

// InStock reports whether the requested quantity can be satisfied.
func (a Availability) InStock(requested int) bool {
	return a.Active && a.AvailableQty >= requested
}

// Service resolves availability against the product catalog.
type Service interface {
	Availability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Availability, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds an inventory service backed by the catalog tables.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{db: db}, nil
}

func (s *service) Availability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Availability, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	result := &Availability{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Active:       product.IsActive,
		OnSale:       product.OnSale,
		AvailableQty: product.StockQty,
		CurrentPrice: product.Price,
	}
	if variantID == nil {
		return result, nil
	}

	var variant models.ProductVariant
	err = s.db.WithContext(ctx).
		First(&variant, "id = ? AND product_id = ?", *variantID, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}

	result.VariantID = &variant.ID
	result.Active = product.IsActive && variant.IsActive
	result.AvailableQty = variant.StockQty
	if variant.Price != nil {
		result.CurrentPrice = *variant.Price
	}
	return result, nil
}
