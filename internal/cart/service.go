package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/internal/inventory"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/types"
)

// AddItemInput captures a request to put a product line in the cart.
type AddItemInput struct {
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	Quantity        int
	IsGift          bool
	SelectedOptions types.ItemOptions
}

// Service is the cart engine: item mutations, coupon application, lifecycle
// reads. Every mutation runs in a transaction holding the cart's row lock so
// concurrent requests against the same cart serialize.
type Service interface {
	GetOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error)
	GetCart(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, owner Owner) (*models.Cart, error)
	SaveItemForLater(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	RestoreItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, owner Owner, code string, customerEmail string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, owner Owner) (*models.Cart, error)
	RefreshWarnings(ctx context.Context, owner Owner) (*models.Cart, error)
	MergeGuestCart(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Cart, error)
	Repo() Repo
}

type service struct {
	repo      Repo
	inventory inventory.Service
	coupons   coupon.Service
	events    *outbox.Service
	cfg       config.CartConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the cart service.
func NewService(
	repo Repo,
	inv inventory.Service,
	coupons coupon.Service,
	events *outbox.Service,
	cfg config.CartConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New("cart repo required")
	}
	if inv == nil {
		return nil, errors.New("inventory service required")
	}
	if coupons == nil {
		return nil, errors.New("coupon service required")
	}
	if events == nil {
		return nil, errors.New("outbox service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		repo:      repo,
		inventory: inv,
		coupons:   coupons,
		events:    events,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Repo() Repo { return s.repo }

// GetOrCreateCart returns the owner's active cart, creating one when none
// exists. Guest carts are seeded with an expiry deadline.
func (s *service) GetOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart owner")
	}

	existing, err := s.repo.FindActiveByOwner(ctx, owner)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	cart := &models.Cart{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    enums.CartStatusActive,
		Currency:  enums.CurrencyUSD,
	}
	if owner.IsGuest() {
		expiresAt := s.now().Add(s.cfg.GuestTTL)
		cart.ExpiresAt = &expiresAt
	}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, owner.LogFields())
	s.logg.Info(s.logg.WithCartID(logCtx, cart.ID.String()), "cart created")
	return cart, nil
}

func (s *service) GetCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart owner")
	}
	return s.repo.FindActiveByOwner(ctx, owner)
}

// mutate runs fn against the owner's locked active cart, persisting the
// header afterwards. An expired cart is rejected before fn runs.
func (s *service) mutate(ctx context.Context, owner Owner, fn func(tx *gorm.DB, cart *models.Cart) error) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart owner")
	}

	var result *models.Cart
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.repo.FindActiveByOwnerForUpdate(tx, owner)
		if err != nil {
			return err
		}
		if cart.IsExpired(s.now()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart has expired")
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		cart.RecalculateTotals()
		if err := s.repo.Save(tx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddItem puts a product line in the cart. An existing active line for the
// same (product, variant) accumulates quantity instead of duplicating; the
// original price snapshot is kept. New lines snapshot the current price.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if _, err := s.GetOrCreateCart(ctx, owner); err != nil {
		return nil, err
	}

	availability, err := s.inventory.Availability(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}
	if !availability.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		existing := cart.FindItem(input.ProductID, input.VariantID)

		requested := input.Quantity
		if existing != nil {
			requested += existing.Quantity
		}
		if !availability.InStock(requested) {
			return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
				WithDetails(map[string]any{"available": availability.AvailableQty})
		}

		if existing != nil {
			existing.Quantity = requested
			existing.RecalculateLineTotal()
			return s.repo.SaveItem(tx, existing)
		}

		item := models.CartItem{
			CartID:          cart.ID,
			ProductID:       input.ProductID,
			VariantID:       input.VariantID,
			Quantity:        input.Quantity,
			UnitPrice:       availability.CurrentPrice,
			IsGift:          input.IsGift,
			SelectedOptions: input.SelectedOptions,
		}
		item.RecalculateLineTotal()
		if err := s.repo.CreateItem(tx, &item); err != nil {
			return err
		}
		cart.Items = append(cart.Items, item)
		return nil
	})
}

func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		item := findLine(cart, itemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		availability, err := s.inventory.Availability(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return err
		}
		if !availability.InStock(quantity) {
			return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
				WithDetails(map[string]any{"available": availability.AvailableQty})
		}

		item.Quantity = quantity
		item.RecalculateLineTotal()
		return s.repo.SaveItem(tx, item)
	})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		if findLine(cart, itemID) == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if err := s.repo.DeleteItem(tx, itemID); err != nil {
			return err
		}
		return cart.RemoveItem(itemID)
	})
}

func (s *service) ClearCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		if err := s.repo.DeleteItems(tx, cart.ID); err != nil {
			return err
		}
		return cart.ClearItems()
	})
}

// SaveItemForLater parks a line outside the purchasable set. The line keeps
// its price snapshot but stops counting toward the subtotal.
func (s *service) SaveItemForLater(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	return s.setSavedForLater(ctx, owner, itemID, true)
}

// RestoreItem moves a saved-for-later line back into the purchasable set,
// folding it into a matching active line when one appeared in the meantime.
func (s *service) RestoreItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		item := findLine(cart, itemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if !item.SavedForLater {
			return nil
		}

		active := cart.FindItem(item.ProductID, item.VariantID)
		if active != nil {
			active.Quantity += item.Quantity
			active.RecalculateLineTotal()
			if err := s.repo.SaveItem(tx, active); err != nil {
				return err
			}
			if err := s.repo.DeleteItem(tx, item.ID); err != nil {
				return err
			}
			return cart.RemoveItem(item.ID)
		}

		item.SavedForLater = false
		item.RecalculateLineTotal()
		return s.repo.SaveItem(tx, item)
	})
}

func (s *service) setSavedForLater(ctx context.Context, owner Owner, itemID uuid.UUID, saved bool) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		item := findLine(cart, itemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if item.SavedForLater == saved {
			return nil
		}
		item.SavedForLater = saved
		return s.repo.SaveItem(tx, item)
	})
}

// ApplyCoupon validates the code against the cart's purchasable subtotal and
// records the resulting discount. FREE_SHIPPING coupons zero the shipping fee
// by discounting its full amount; BUY_ONE_GET_ONE grants the cheapest unit in
// the cart for free once at least two units are present.
func (s *service) ApplyCoupon(ctx context.Context, owner Owner, code string, customerEmail string) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		if cart.AppliedCouponCode != nil && *cart.AppliedCouponCode != coupon.NormalizeCode(code) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "another coupon is already applied")
		}

		found, err := s.coupons.Repo().FindByCode(ctx, code)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return pkgerrors.New(pkgerrors.CodeCouponError, "coupon code not found")
			}
			return err
		}

		eligible, err := s.eligibleSubtotal(ctx, cart, found)
		if err != nil {
			return err
		}

		validation, err := s.coupons.Check(ctx, found, eligible, customerEmail, nil)
		if err != nil {
			return err
		}

		discount := validation.Discount
		switch validation.Coupon.Type {
		case enums.CouponTypeFreeShipping:
			discount = cart.ShippingFee
		case enums.CouponTypeBuyOneGetOne:
			discount = cheapestUnitPrice(cart)
			if discount.IsZero() {
				return pkgerrors.New(pkgerrors.CodeCouponError, "cart does not qualify for a buy-one-get-one offer")
			}
		}

		return cart.ApplyCoupon(validation.Coupon.Code, discount)
	})
}

func (s *service) RemoveCoupon(ctx context.Context, owner Owner) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		return cart.RemoveCoupon()
	})
}

// eligibleSubtotal returns the subtotal the coupon may discount. Coupons that
// exclude sale items only see the full-price portion of the cart.
func (s *service) eligibleSubtotal(ctx context.Context, cart *models.Cart, found *models.Coupon) (decimal.Decimal, error) {
	if found.AppliesToSaleItems {
		return cart.Subtotal, nil
	}

	eligible := decimal.Zero
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.SavedForLater {
			continue
		}
		availability, err := s.inventory.Availability(ctx, item.ProductID, item.VariantID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			return decimal.Zero, err
		}
		if availability.OnSale {
			continue
		}
		eligible = eligible.Add(item.TotalPrice)
	}
	return eligible, nil
}

// RefreshWarnings re-validates every line against the live catalog and
// annotates lines whose product went inactive, ran out of stock, or changed
// price since the snapshot was taken. Snapshots are never rewritten.
func (s *service) RefreshWarnings(ctx context.Context, owner Owner) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(tx *gorm.DB, cart *models.Cart) error {
		for i := range cart.Items {
			item := &cart.Items[i]
			if item.SavedForLater {
				continue
			}

			warnings := types.CartItemWarnings{}
			availability, err := s.inventory.Availability(ctx, item.ProductID, item.VariantID)
			switch {
			case err != nil && pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
				warnings = append(warnings, types.CartItemWarning{
					Type:    enums.CartItemWarningProductInactive,
					Message: "product is no longer available",
				})
			case err != nil:
				return err
			default:
				if !availability.Active {
					warnings = append(warnings, types.CartItemWarning{
						Type:    enums.CartItemWarningProductInactive,
						Message: "product is no longer available",
					})
				}
				if availability.Active && availability.AvailableQty < item.Quantity {
					warnings = append(warnings, types.CartItemWarning{
						Type:    enums.CartItemWarningInsufficientStock,
						Message: "requested quantity exceeds available stock",
					})
				}
				if availability.Active && !availability.CurrentPrice.Equal(item.UnitPrice) {
					warnings = append(warnings, types.CartItemWarning{
						Type:    enums.CartItemWarningPriceChanged,
						Message: "price has changed since this item was added",
					})
				}
			}

			if warningsEqual(item.Warnings, warnings) {
				continue
			}
			item.Warnings = warnings
			if err := s.repo.SaveItem(tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func findLine(cart *models.Cart, itemID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return &cart.Items[i]
		}
	}
	return nil
}

// cheapestUnitPrice returns the lowest unit price among purchasable lines,
// or zero when fewer than two units are in the cart.
func cheapestUnitPrice(cart *models.Cart) decimal.Decimal {
	totalUnits := 0
	cheapest := decimal.Zero
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.SavedForLater {
			continue
		}
		totalUnits += item.Quantity
		if cheapest.IsZero() || item.UnitPrice.LessThan(cheapest) {
			cheapest = item.UnitPrice
		}
	}
	if totalUnits < 2 {
		return decimal.Zero
	}
	return cheapest
}

func warningsEqual(a, b types.CartItemWarnings) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
