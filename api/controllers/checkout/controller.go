package checkout

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/api/middleware"
	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/api/validators"
	"github.com/jaujye/ocean-shopping-center/internal/checkout"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
)

// Controller serves the checkout endpoint.
type Controller struct {
	checkout checkout.Service
	logg     *logger.Logger
}

// NewController builds the checkout controller.
func NewController(svc checkout.Service, logg *logger.Logger) (*Controller, error) {
	if svc == nil {
		return nil, errors.New("checkout service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Controller{checkout: svc, logg: logg}, nil
}

type checkoutRequest struct {
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
}

type orderResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderNumber    string    `json:"orderNumber"`
	CartID         uuid.UUID `json:"cartId"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
	Subtotal       string    `json:"subtotal"`
	TaxAmount      string    `json:"taxAmount"`
	ShippingFee    string    `json:"shippingFee"`
	DiscountAmount string    `json:"discountAmount"`
	CouponDiscount string    `json:"couponDiscount"`
	Total          string    `json:"total"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Execute converts the caller's active cart into an order.
func (c *Controller) Execute(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), w, c.logg, errors.New("identity missing"))
		return
	}
	owner, err := identity.Owner()
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	var body checkoutRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	email := body.CustomerEmail
	if email == "" {
		email = identity.Email
	}

	result, err := c.checkout.Execute(r.Context(), owner, checkout.Input{CustomerEmail: email})
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusCreated, toOrderResponse(result.Order))
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		CartID:         order.CartID,
		Status:         order.Status.String(),
		Currency:       order.Currency.String(),
		Subtotal:       order.Subtotal.StringFixed(2),
		TaxAmount:      order.TaxAmount.StringFixed(2),
		ShippingFee:    order.ShippingFee.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
		CouponDiscount: order.CouponDiscount.StringFixed(2),
		Total:          order.Total.StringFixed(2),
		CreatedAt:      order.CreatedAt,
	}
}
