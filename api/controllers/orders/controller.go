package orders

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jaujye/ocean-shopping-center/api/middleware"
	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/api/validators"
	orderrepo "github.com/jaujye/ocean-shopping-center/internal/orders"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

// Controller serves order history for authenticated users.
type Controller struct {
	orders orderrepo.Repo
	logg   *logger.Logger
}

// NewController builds the orders controller.
func NewController(orders orderrepo.Repo, logg *logger.Logger) (*Controller, error) {
	if orders == nil {
		return nil, errors.New("order repo required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Controller{orders: orders, logg: logg}, nil
}

type orderSummary struct {
	ID             uuid.UUID `json:"id"`
	OrderNumber    string    `json:"orderNumber"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
	Total          string    `json:"total"`
	CouponDiscount string    `json:"couponDiscount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type orderDetail struct {
	orderSummary
	Subtotal       string              `json:"subtotal"`
	TaxAmount      string              `json:"taxAmount"`
	ShippingFee    string              `json:"shippingFee"`
	DiscountAmount string              `json:"discountAmount"`
	Coupons        []orderCouponDetail `json:"coupons"`
}

type orderCouponDetail struct {
	CouponCode          string    `json:"couponCode"`
	CouponName          string    `json:"couponName"`
	DiscountAmount      string    `json:"discountAmount"`
	OriginalOrderAmount string    `json:"originalOrderAmount"`
	Currency            string    `json:"currency"`
	CreatedAt           time.Time `json:"createdAt"`
}

type listResponse struct {
	Orders     []orderSummary `json:"orders"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

// List pages through the caller's orders, newest first.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	if identity.UserID == nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return
	}
	params, err := validators.PaginationParams(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	results, next, err := c.orders.ListByUser(r.Context(), *identity.UserID, params)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	resp := listResponse{Orders: make([]orderSummary, 0, len(results))}
	for i := range results {
		resp.Orders = append(resp.Orders, toOrderSummary(&results[i]))
	}
	if next != nil {
		encoded := pagination.EncodeCursor(*next)
		resp.NextCursor = &encoded
	}
	responses.WriteSuccess(w, http.StatusOK, resp)
}

// Get returns one of the caller's orders with its coupon ledger entries.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	if identity.UserID == nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return
	}
	orderID, err := validators.PathUUID(chi.URLParam(r, "orderID"), "orderID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	order, err := c.orders.FindByID(r.Context(), orderID)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	if order.UserID == nil || *order.UserID != *identity.UserID {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
		return
	}

	coupons, err := c.orders.ListOrderCoupons(r.Context(), order.ID)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	detail := orderDetail{
		orderSummary:   toOrderSummary(order),
		Subtotal:       order.Subtotal.StringFixed(2),
		TaxAmount:      order.TaxAmount.StringFixed(2),
		ShippingFee:    order.ShippingFee.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
		Coupons:        make([]orderCouponDetail, 0, len(coupons)),
	}
	for _, record := range coupons {
		detail.Coupons = append(detail.Coupons, orderCouponDetail{
			CouponCode:          record.CouponCode,
			CouponName:          record.CouponName,
			DiscountAmount:      record.DiscountAmount.StringFixed(2),
			OriginalOrderAmount: record.OriginalOrderAmount.StringFixed(2),
			Currency:            record.Currency.String(),
			CreatedAt:           record.CreatedAt,
		})
	}
	responses.WriteSuccess(w, http.StatusOK, detail)
}

func toOrderSummary(order *models.Order) orderSummary {
	return orderSummary{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status.String(),
		Currency:       order.Currency.String(),
		Total:          order.Total.StringFixed(2),
		CouponDiscount: order.CouponDiscount.StringFixed(2),
		CreatedAt:      order.CreatedAt,
	}
}
