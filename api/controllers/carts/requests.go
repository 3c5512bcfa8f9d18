package carts

import (
	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/pkg/types"
)

type addItemRequest struct {
	ProductID       uuid.UUID         `json:"productId" validate:"required"`
	VariantID       *uuid.UUID        `json:"variantId"`
	Quantity        int               `json:"quantity" validate:"required,min=1"`
	IsGift          bool              `json:"isGift"`
	SelectedOptions types.ItemOptions `json:"selectedOptions"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

type applyCouponRequest struct {
	Code          string `json:"code" validate:"required,min=1,max=64"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
}

type mergeCartRequest struct {
	SessionID string `json:"sessionId" validate:"required,min=1,max=128"`
}
