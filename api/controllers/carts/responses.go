package carts

import (
	"time"

	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/types"
)

// cartResponse is the public cart shape. Money renders as fixed two-decimal
// strings so clients never see float artifacts.
type cartResponse struct {
	ID                uuid.UUID          `json:"id"`
	Status            string             `json:"status"`
	Currency          string             `json:"currency"`
	Subtotal          string             `json:"subtotal"`
	TaxAmount         string             `json:"taxAmount"`
	ShippingFee       string             `json:"shippingFee"`
	DiscountAmount    string             `json:"discountAmount"`
	CouponDiscount    string             `json:"couponDiscount"`
	Total             string             `json:"total"`
	AppliedCouponCode *string            `json:"appliedCouponCode,omitempty"`
	ExpiresAt         *time.Time         `json:"expiresAt,omitempty"`
	Items             []cartItemResponse `json:"items"`
	SavedForLater     []cartItemResponse `json:"savedForLater"`
}

type cartItemResponse struct {
	ID              uuid.UUID                `json:"id"`
	ProductID       uuid.UUID                `json:"productId"`
	VariantID       *uuid.UUID               `json:"variantId,omitempty"`
	Quantity        int                      `json:"quantity"`
	UnitPrice       string                   `json:"unitPrice"`
	ItemDiscount    string                   `json:"itemDiscount"`
	TotalPrice      string                   `json:"totalPrice"`
	IsGift          bool                     `json:"isGift"`
	SelectedOptions types.ItemOptions        `json:"selectedOptions,omitempty"`
	Warnings        []cartItemWarningPayload `json:"warnings,omitempty"`
}

type cartItemWarningPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toCartResponse(cart *models.Cart) cartResponse {
	resp := cartResponse{
		ID:                cart.ID,
		Status:            cart.Status.String(),
		Currency:          cart.Currency.String(),
		Subtotal:          cart.Subtotal.StringFixed(2),
		TaxAmount:         cart.TaxAmount.StringFixed(2),
		ShippingFee:       cart.ShippingFee.StringFixed(2),
		DiscountAmount:    cart.DiscountAmount.StringFixed(2),
		CouponDiscount:    cart.CouponDiscount.StringFixed(2),
		Total:             cart.Total.StringFixed(2),
		AppliedCouponCode: cart.AppliedCouponCode,
		ExpiresAt:         cart.ExpiresAt,
		Items:             []cartItemResponse{},
		SavedForLater:     []cartItemResponse{},
	}
	for i := range cart.Items {
		item := toCartItemResponse(&cart.Items[i])
		if cart.Items[i].SavedForLater {
			resp.SavedForLater = append(resp.SavedForLater, item)
			continue
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func toCartItemResponse(item *models.CartItem) cartItemResponse {
	resp := cartItemResponse{
		ID:              item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice.StringFixed(2),
		ItemDiscount:    item.ItemDiscount.StringFixed(2),
		TotalPrice:      item.TotalPrice.StringFixed(2),
		IsGift:          item.IsGift,
		SelectedOptions: item.SelectedOptions,
	}
	for _, warning := range item.Warnings {
		resp.Warnings = append(resp.Warnings, cartItemWarningPayload{
			Type:    warning.Type.String(),
			Message: warning.Message,
		})
	}
	return resp
}
