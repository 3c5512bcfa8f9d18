package carts

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/api/middleware"
	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/api/validators"
	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
)

// Controller serves the cart endpoints for both guests and users.
type Controller struct {
	carts cart.Service
	logg  *logger.Logger
}

// NewController builds the cart controller.
func NewController(carts cart.Service, logg *logger.Logger) (*Controller, error) {
	if carts == nil {
		return nil, errors.New("cart service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Controller{carts: carts, logg: logg}, nil
}

func (c *Controller) owner(r *http.Request) (cart.Owner, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return identity.Owner()
}

// Get returns the caller's active cart, creating one when absent.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	result, err := c.carts.GetOrCreateCart(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// AddItem puts a product line in the cart.
func (c *Controller) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	var body addItemRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	result, err := c.carts.AddItem(r.Context(), owner, cart.AddItemInput{
		ProductID:       body.ProductID,
		VariantID:       body.VariantID,
		Quantity:        body.Quantity,
		IsGift:          body.IsGift,
		SelectedOptions: body.SelectedOptions,
	})
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// UpdateItem changes a line's quantity; zero removes the line.
func (c *Controller) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	itemID, err := validators.PathUUID(chi.URLParam(r, "itemID"), "itemID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	var body updateQuantityRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	result, err := c.carts.UpdateItemQuantity(r.Context(), owner, itemID, body.Quantity)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// RemoveItem deletes a line from the cart.
func (c *Controller) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	itemID, err := validators.PathUUID(chi.URLParam(r, "itemID"), "itemID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	result, err := c.carts.RemoveItem(r.Context(), owner, itemID)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// Clear removes every line from the cart.
func (c *Controller) Clear(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	result, err := c.carts.ClearCart(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// SaveForLater parks a line outside the purchasable set.
func (c *Controller) SaveForLater(w http.ResponseWriter, r *http.Request) {
	c.itemAction(w, r, c.carts.SaveItemForLater)
}

// Restore moves a saved-for-later line back into the cart.
func (c *Controller) Restore(w http.ResponseWriter, r *http.Request) {
	c.itemAction(w, r, c.carts.RestoreItem)
}

func (c *Controller) itemAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*models.Cart, error)) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	itemID, err := validators.PathUUID(chi.URLParam(r, "itemID"), "itemID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	result, err := fn(r.Context(), owner, itemID)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// ApplyCoupon validates a code and applies its discount to the cart.
func (c *Controller) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	var body applyCouponRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	email := body.CustomerEmail
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && identity.Email != "" {
		email = identity.Email
	}

	result, err := c.carts.ApplyCoupon(r.Context(), owner, body.Code, email)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// RemoveCoupon clears the applied coupon.
func (c *Controller) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	result, err := c.carts.RemoveCoupon(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// Refresh re-validates every line against the live catalog and returns the
// cart with warnings attached.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	owner, err := c.owner(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	result, err := c.carts.RefreshWarnings(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}

// Merge folds the given guest session's cart into the authenticated user's
// cart. Login flows call this right after token issuance.
func (c *Controller) Merge(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || identity.UserID == nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return
	}
	var body mergeCartRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	result, err := c.carts.MergeGuestCart(r.Context(), *identity.UserID, body.SessionID)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCartResponse(result))
}
