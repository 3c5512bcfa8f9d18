package coupons

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/api/responses"
	"github.com/jaujye/ocean-shopping-center/api/validators"
	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

// Controller serves coupon administration and the public validation check.
type Controller struct {
	coupons coupon.Service
	logg    *logger.Logger
}

// NewController builds the coupon controller.
func NewController(coupons coupon.Service, logg *logger.Logger) (*Controller, error) {
	if coupons == nil {
		return nil, errors.New("coupon service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Controller{coupons: coupons, logg: logg}, nil
}

type createCouponRequest struct {
	Code                  string     `json:"code" validate:"required,min=1,max=64"`
	Name                  string     `json:"name" validate:"required,min=1,max=255"`
	Type                  string     `json:"type" validate:"required"`
	DiscountValue         string     `json:"discountValue" validate:"required"`
	MinimumOrderAmount    *string    `json:"minimumOrderAmount"`
	MaximumDiscount       *string    `json:"maximumDiscount"`
	UsageLimit            *int       `json:"usageLimit"`
	UsageLimitPerCustomer *int       `json:"usageLimitPerCustomer"`
	ValidFrom             time.Time  `json:"validFrom" validate:"required"`
	ValidUntil            time.Time  `json:"validUntil" validate:"required"`
	StoreID               *uuid.UUID `json:"storeId"`
	FirstTimeCustomerOnly bool       `json:"firstTimeCustomerOnly"`
	AppliesToSaleItems    *bool      `json:"appliesToSaleItems"`
}

type validateCouponRequest struct {
	Code          string `json:"code" validate:"required,min=1,max=64"`
	OrderAmount   string `json:"orderAmount" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
}

type couponResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	Type                  string     `json:"type"`
	Status                string     `json:"status"`
	DiscountValue         string     `json:"discountValue"`
	MinimumOrderAmount    *string    `json:"minimumOrderAmount,omitempty"`
	MaximumDiscount       *string    `json:"maximumDiscount,omitempty"`
	UsageLimit            *int       `json:"usageLimit,omitempty"`
	UsageLimitPerCustomer *int       `json:"usageLimitPerCustomer,omitempty"`
	TimesUsed             int        `json:"timesUsed"`
	ValidFrom             time.Time  `json:"validFrom"`
	ValidUntil            time.Time  `json:"validUntil"`
	StoreID               *uuid.UUID `json:"storeId,omitempty"`
	FirstTimeCustomerOnly bool       `json:"firstTimeCustomerOnly"`
	AppliesToSaleItems    bool       `json:"appliesToSaleItems"`
}

type validationResponse struct {
	Valid    bool   `json:"valid"`
	Code     string `json:"code"`
	Discount string `json:"discount"`
}

type listResponse struct {
	Coupons    []couponResponse `json:"coupons"`
	NextCursor *string          `json:"nextCursor,omitempty"`
}

// Create registers a new coupon. Admin only.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var body createCouponRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	couponType, err := enums.ParseCouponType(body.Type)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon type"))
		return
	}
	discountValue, err := decimal.NewFromString(body.DiscountValue)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeValidation, "discountValue must be a decimal string"))
		return
	}
	minimumOrder, err := optionalDecimal(body.MinimumOrderAmount, "minimumOrderAmount")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	maximumDiscount, err := optionalDecimal(body.MaximumDiscount, "maximumDiscount")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	appliesToSale := true
	if body.AppliesToSaleItems != nil {
		appliesToSale = *body.AppliesToSaleItems
	}

	created, err := c.coupons.Create(r.Context(), coupon.CreateInput{
		Code:                  body.Code,
		Name:                  body.Name,
		Type:                  couponType,
		DiscountValue:         discountValue,
		MinimumOrderAmount:    minimumOrder,
		MaximumDiscount:       maximumDiscount,
		UsageLimit:            body.UsageLimit,
		UsageLimitPerCustomer: body.UsageLimitPerCustomer,
		ValidFrom:             body.ValidFrom,
		ValidUntil:            body.ValidUntil,
		StoreID:               body.StoreID,
		FirstTimeCustomerOnly: body.FirstTimeCustomerOnly,
		AppliesToSaleItems:    appliesToSale,
	})
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusCreated, toCouponResponse(created))
}

// Get returns one coupon by id. Admin only.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	id, err := validators.PathUUID(chi.URLParam(r, "couponID"), "couponID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	found, err := c.coupons.Get(r.Context(), id)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCouponResponse(found))
}

// List pages through coupons. Admin only.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	params, err := validators.PaginationParams(r)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	results, next, err := c.coupons.List(r.Context(), params)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}

	resp := listResponse{Coupons: make([]couponResponse, 0, len(results))}
	for i := range results {
		resp.Coupons = append(resp.Coupons, toCouponResponse(&results[i]))
	}
	if next != nil {
		encoded := pagination.EncodeCursor(*next)
		resp.NextCursor = &encoded
	}
	responses.WriteSuccess(w, http.StatusOK, resp)
}

// Deactivate disables a coupon. Admin only.
func (c *Controller) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := validators.PathUUID(chi.URLParam(r, "couponID"), "couponID")
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	updated, err := c.coupons.Deactivate(r.Context(), id)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, toCouponResponse(updated))
}

// Validate checks a code against an order amount without applying it.
func (c *Controller) Validate(w http.ResponseWriter, r *http.Request) {
	var body validateCouponRequest
	if err := validators.DecodeAndValidate(r, &body); err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	orderAmount, err := decimal.NewFromString(body.OrderAmount)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg,
			pkgerrors.New(pkgerrors.CodeValidation, "orderAmount must be a decimal string"))
		return
	}

	validation, err := c.coupons.Validate(r.Context(), body.Code, orderAmount, body.CustomerEmail, nil)
	if err != nil {
		responses.WriteError(r.Context(), w, c.logg, err)
		return
	}
	responses.WriteSuccess(w, http.StatusOK, validationResponse{
		Valid:    true,
		Code:     validation.Coupon.Code,
		Discount: validation.Discount.StringFixed(2),
	})
}

func optionalDecimal(raw *string, name string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a decimal string")
	}
	return &value, nil
}

func toCouponResponse(m *models.Coupon) couponResponse {
	resp := couponResponse{
		ID:                    m.ID,
		Code:                  m.Code,
		Name:                  m.Name,
		Type:                  m.Type.String(),
		Status:                m.Status.String(),
		DiscountValue:         m.DiscountValue.StringFixed(2),
		UsageLimit:            m.UsageLimit,
		UsageLimitPerCustomer: m.UsageLimitPerCustomer,
		TimesUsed:             m.TimesUsed,
		ValidFrom:             m.ValidFrom,
		ValidUntil:            m.ValidUntil,
		StoreID:               m.StoreID,
		FirstTimeCustomerOnly: m.FirstTimeCustomerOnly,
		AppliesToSaleItems:    m.AppliesToSaleItems,
	}
	if m.MinimumOrderAmount != nil {
		formatted := m.MinimumOrderAmount.StringFixed(2)
		resp.MinimumOrderAmount = &formatted
	}
	if m.MaximumDiscount != nil {
		formatted := m.MaximumDiscount.StringFixed(2)
		resp.MaximumDiscount = &formatted
	}
	return resp
}
