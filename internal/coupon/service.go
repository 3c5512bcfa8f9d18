package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

// CreateInput carries the admin-facing fields for a new coupon.
type CreateInput struct {
	Code                  string
	Name                  string
	Type                  enums.CouponType
	DiscountValue         decimal.Decimal
	MinimumOrderAmount    *decimal.Decimal
	MaximumDiscount       *decimal.Decimal
	UsageLimit            *int
	UsageLimitPerCustomer *int
	ValidFrom             time.Time
	ValidUntil            time.Time
	StoreID               *uuid.UUID
	FirstTimeCustomerOnly bool
	AppliesToSaleItems    bool
}

// Validation is the outcome of checking a coupon against an order context.
type Validation struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

// Service exposes coupon administration and the validation pipeline carts and
// checkout share.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, params pagination.Params) ([]models.Coupon, *pagination.Cursor, error)
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, customerEmail string, storeID *uuid.UUID) (*Validation, error)
	Check(ctx context.Context, coupon *models.Coupon, orderAmount decimal.Decimal, customerEmail string, storeID *uuid.UUID) (*Validation, error)
	Repo() Repo
}

type service struct {
	repo Repo
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the coupon service.
func NewService(repo Repo, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("coupon repo required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) Repo() Repo { return s.repo }

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon type")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity window must end after it starts")
	}
	if input.DiscountValue.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value cannot be negative")
	}
	if input.Type == enums.CouponTypePercentage && input.DiscountValue.GreaterThan(oneHundred()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.UsageLimit != nil && *input.UsageLimit < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be at least 1")
	}
	if input.UsageLimitPerCustomer != nil && *input.UsageLimitPerCustomer < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "per-customer usage limit must be at least 1")
	}

	coupon := &models.Coupon{
		Code:                  NormalizeCode(input.Code),
		Name:                  input.Name,
		Type:                  input.Type,
		DiscountValue:         input.DiscountValue,
		MinimumOrderAmount:    input.MinimumOrderAmount,
		MaximumDiscount:       input.MaximumDiscount,
		UsageLimit:            input.UsageLimit,
		UsageLimitPerCustomer: input.UsageLimitPerCustomer,
		ValidFrom:             input.ValidFrom,
		ValidUntil:            input.ValidUntil,
		StoreID:               input.StoreID,
		Status:                enums.CouponStatusActive,
		FirstTimeCustomerOnly: input.FirstTimeCustomerOnly,
		AppliesToSaleItems:    input.AppliesToSaleItems,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"coupon_id": coupon.ID.String(),
		"code":      coupon.Code,
		"type":      string(coupon.Type),
	}), "coupon created")
	return coupon, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if coupon.Status == enums.CouponStatusDisabled {
		return coupon, nil
	}
	coupon.Status = enums.CouponStatusDisabled
	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Coupon, *pagination.Cursor, error) {
	return s.repo.List(ctx, params)
}

// Validate runs the full applicability pipeline for a coupon code against an
// order amount and customer. It returns COUPON_NOT_APPLICABLE for every
// business rejection so callers surface one stable error code.
func (s *service) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, customerEmail string, storeID *uuid.UUID) (*Validation, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCouponError, "coupon code not found")
		}
		return nil, err
	}
	return s.Check(ctx, coupon, orderAmount, customerEmail, storeID)
}

// Check is Validate for a coupon row the caller already holds, so callers
// that needed the row for their own rules do not fetch it twice.
func (s *service) Check(ctx context.Context, coupon *models.Coupon, orderAmount decimal.Decimal, customerEmail string, storeID *uuid.UUID) (*Validation, error) {
	now := s.now()
	if !coupon.CanBeUsed(now) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponError, rejectionReason(coupon, now))
	}
	if coupon.StoreID != nil && (storeID == nil || *coupon.StoreID != *storeID) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponError, "coupon is restricted to another store")
	}
	if coupon.MinimumOrderAmount != nil && orderAmount.LessThan(*coupon.MinimumOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponError, "order amount is below the coupon minimum").
			WithDetails(map[string]any{"minimum_order_amount": coupon.MinimumOrderAmount.StringFixed(2)})
	}

	if customerEmail != "" {
		if coupon.FirstTimeCustomerOnly {
			orders, err := s.repo.CountOrdersByCustomer(ctx, customerEmail)
			if err != nil {
				return nil, err
			}
			if orders > 0 {
				return nil, pkgerrors.New(pkgerrors.CodeCouponError, "coupon is for first-time customers only")
			}
		}
		if coupon.UsageLimitPerCustomer != nil {
			used, err := s.repo.CountRedemptionsByCustomer(ctx, coupon.ID, customerEmail)
			if err != nil {
				return nil, err
			}
			if used >= int64(*coupon.UsageLimitPerCustomer) {
				return nil, pkgerrors.New(pkgerrors.CodeCouponError, "per-customer usage limit reached")
			}
		}
	}

	return &Validation{
		Coupon:   coupon,
		Discount: coupon.CalculateDiscount(orderAmount),
	}, nil
}

func rejectionReason(coupon *models.Coupon, now time.Time) string {
	switch {
	case coupon.Status == enums.CouponStatusUsedUp:
		return "coupon usage limit has been reached"
	case coupon.Status != enums.CouponStatusActive:
		return "coupon is not active"
	case now.Before(coupon.ValidFrom):
		return "coupon is not yet valid"
	case now.After(coupon.ValidUntil):
		return "coupon has expired"
	default:
		return "coupon usage limit has been reached"
	}
}

func oneHundred() decimal.Decimal {
	return decimal.NewFromInt(100)
}
