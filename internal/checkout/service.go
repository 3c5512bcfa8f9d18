package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/internal/orders"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox/payloads"
)

// Input carries the buyer details checkout needs beyond the cart itself.
type Input struct {
	CustomerEmail string
}

// Result is the outcome of a successful checkout.
type Result struct {
	Order *models.Order
	Cart  *models.Cart
}

// Service converts a cart into an order. Order creation, coupon redemption,
// the ledger write, and the cart's CONVERTED transition commit in a single
// transaction; any failure rolls everything back.
type Service interface {
	Execute(ctx context.Context, owner cart.Owner, input Input) (*Result, error)
}

type service struct {
	carts   cart.Repo
	coupons coupon.Repo
	orders  orders.Repo
	events  *outbox.Service
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the checkout service.
func NewService(
	carts cart.Repo,
	coupons coupon.Repo,
	orderRepo orders.Repo,
	events *outbox.Service,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, errors.New("cart repo required")
	}
	if coupons == nil {
		return nil, errors.New("coupon repo required")
	}
	if orderRepo == nil {
		return nil, errors.New("order repo required")
	}
	if events == nil {
		return nil, errors.New("outbox service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		carts:   carts,
		coupons: coupons,
		orders:  orderRepo,
		events:  events,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, owner cart.Owner, input Input) (*Result, error) {
	if err := owner.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart owner")
	}
	email := strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}

	now := s.now()
	var result *Result
	err := s.carts.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.carts.FindActiveByOwnerForUpdate(tx, owner)
		if err != nil {
			return err
		}
		if locked.IsExpired(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart has expired")
		}
		if !hasPurchasableItems(locked) {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		order := &models.Order{
			OrderNumber:    orders.NewOrderNumber(now),
			CartID:         locked.ID,
			UserID:         locked.UserID,
			SessionID:      locked.SessionID,
			CustomerEmail:  email,
			Currency:       locked.Currency,
			Subtotal:       locked.Subtotal,
			TaxAmount:      locked.TaxAmount,
			ShippingFee:    locked.ShippingFee,
			DiscountAmount: locked.DiscountAmount,
			CouponDiscount: locked.CouponDiscount,
			Total:          locked.Total,
			Status:         enums.OrderStatusPending,
		}
		if err := s.orders.Create(tx, order); err != nil {
			return err
		}

		if locked.AppliedCouponCode != nil {
			if err := s.redeemCoupon(ctx, tx, locked, order, email, now); err != nil {
				return err
			}
		}

		if err := locked.MarkAsConverted(); err != nil {
			return err
		}
		if err := s.carts.Save(tx, locked); err != nil {
			return err
		}

		convertedEvent := outbox.DomainEvent{
			EventType:     enums.EventCartConverted,
			AggregateType: enums.AggregateCart,
			AggregateID:   locked.ID,
			Version:       1,
			Data: payloads.CartConvertedEvent{
				CartID:      locked.ID,
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Total:       order.Total,
				Currency:    order.Currency.String(),
				ConvertedAt: now.UTC(),
			},
		}
		if err := s.events.Emit(ctx, tx, convertedEvent); err != nil {
			return err
		}

		result = &Result{Order: order, Cart: locked}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":      result.Cart.ID.String(),
		"order_id":     result.Order.ID.String(),
		"order_number": result.Order.OrderNumber,
	})
	s.logg.Info(logCtx, "checkout completed")
	return result, nil
}

// redeemCoupon finalizes the applied coupon inside the checkout transaction.
// The conditional update in RedeemAtomically is what makes racing checkouts
// at the usage cap safe: exactly one wins, the others roll back whole.
func (s *service) redeemCoupon(ctx context.Context, tx *gorm.DB, locked *models.Cart, order *models.Order, email string, now time.Time) error {
	applied, err := s.coupons.FindByCode(ctx, *locked.AppliedCouponCode)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeCouponError, "applied coupon no longer exists")
		}
		return err
	}
	if now.Before(applied.ValidFrom) || now.After(applied.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeCouponError, "applied coupon is outside its validity window")
	}
	if applied.UsageLimitPerCustomer != nil {
		used, err := s.coupons.CountRedemptionsByCustomer(ctx, applied.ID, email)
		if err != nil {
			return err
		}
		if used >= int64(*applied.UsageLimitPerCustomer) {
			return pkgerrors.New(pkgerrors.CodeCouponError, "per-customer usage limit reached")
		}
	}

	if err := s.coupons.RedeemAtomically(tx, applied.ID); err != nil {
		return err
	}

	record := &models.OrderCoupon{
		OrderID:             order.ID,
		CouponID:            applied.ID,
		CouponCode:          applied.Code,
		CouponName:          applied.Name,
		DiscountAmount:      locked.CouponDiscount,
		OriginalOrderAmount: locked.Subtotal,
		Currency:            locked.Currency,
		CustomerEmail:       email,
	}
	if err := s.orders.CreateOrderCoupon(tx, record); err != nil {
		return err
	}

	redeemedEvent := outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   applied.ID,
		Version:       1,
		Data: payloads.CouponRedeemedEvent{
			CouponID:       applied.ID,
			CouponCode:     applied.Code,
			OrderID:        order.ID,
			DiscountAmount: locked.CouponDiscount,
			CustomerEmail:  email,
			RedeemedAt:     now.UTC(),
		},
	}
	return s.events.Emit(ctx, tx, redeemedEvent)
}

func hasPurchasableItems(c *models.Cart) bool {
	for i := range c.Items {
		if !c.Items[i].SavedForLater {
			return true
		}
	}
	return false
}
