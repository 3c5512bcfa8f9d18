package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/internal/inventory"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

// fakeRepo is an in-memory cart store. Locking is a no-op; tests exercise
// single-goroutine behavior.
type fakeRepo struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*models.Cart
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func cloneCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = make([]models.CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func (f *fakeRepo) Create(ctx context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	cart.CreatedAt = time.Now()
	cart.UpdatedAt = time.Now()
	f.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.carts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cloneCart(stored), nil
}

func (f *fakeRepo) findActive(owner Owner) (*models.Cart, error) {
	for _, stored := range f.carts {
		if stored.Status != enums.CartStatusActive {
			continue
		}
		if owner.UserID != nil && stored.UserID != nil && *stored.UserID == *owner.UserID {
			return cloneCart(stored), nil
		}
		if owner.SessionID != nil && stored.SessionID != nil && *stored.SessionID == *owner.SessionID {
			return cloneCart(stored), nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
}

func (f *fakeRepo) FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findActive(owner)
}

func (f *fakeRepo) FindActiveByOwnerForUpdate(tx *gorm.DB, owner Owner) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findActive(owner)
}

func (f *fakeRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Cart, error) {
	return f.FindByID(context.Background(), id)
}

func (f *fakeRepo) Save(tx *gorm.DB, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.carts[cart.ID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	items := stored.Items
	updated := cloneCart(cart)
	updated.Items = items
	updated.UpdatedAt = time.Now()
	f.carts[cart.ID] = updated
	return nil
}

func (f *fakeRepo) UpdateStatus(tx *gorm.DB, cartID uuid.UUID, status enums.CartStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.carts[cartID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	stored.Status = status
	return nil
}

func (f *fakeRepo) CreateItem(tx *gorm.DB, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.carts[item.CartID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	stored.Items = append(stored.Items, *item)
	return nil
}

func (f *fakeRepo) SaveItem(tx *gorm.DB, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.carts[item.CartID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	for i := range stored.Items {
		if stored.Items[i].ID == item.ID {
			stored.Items[i] = *item
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func (f *fakeRepo) DeleteItem(tx *gorm.DB, itemID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.carts {
		for i := range stored.Items {
			if stored.Items[i].ID == itemID {
				stored.Items = append(stored.Items[:i], stored.Items[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeRepo) DeleteItems(tx *gorm.DB, cartID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.carts[cartID]; ok {
		stored.Items = nil
	}
	return nil
}

func (f *fakeRepo) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Cart
	for _, stored := range f.carts {
		if stored.Status == enums.CartStatusActive && stored.UpdatedAt.Before(cutoff) {
			out = append(out, *cloneCart(stored))
		}
	}
	return out, nil
}

func (f *fakeRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Cart
	for _, stored := range f.carts {
		if stored.Status.IsTerminal() {
			continue
		}
		if stored.ExpiresAt != nil && stored.ExpiresAt.Before(now) {
			out = append(out, *cloneCart(stored))
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteEmptyOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, stored := range f.carts {
		if len(stored.Items) == 0 && stored.UpdatedAt.Before(cutoff) {
			delete(f.carts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, stored := range f.carts {
		if stored.Status.IsTerminal() && stored.UpdatedAt.Before(cutoff) {
			delete(f.carts, id)
			deleted++
		}
	}
	return deleted, nil
}

// setUpdatedAt backdates a stored cart for staleness scenarios.
func (f *fakeRepo) setUpdatedAt(cartID uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.carts[cartID]; ok {
		stored.UpdatedAt = at
	}
}

// fakeInventory resolves availability from a static catalog.
type fakeInventory struct {
	mu      sync.Mutex
	catalog map[uuid.UUID]inventory.Availability
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{catalog: map[uuid.UUID]inventory.Availability{}}
}

func (f *fakeInventory) add(productID uuid.UUID, price string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog[productID] = inventory.Availability{
		ProductID:    productID,
		Active:       true,
		AvailableQty: stock,
		CurrentPrice: decimal.RequireFromString(price),
	}
}

func (f *fakeInventory) setPrice(productID uuid.UUID, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.catalog[productID]
	entry.CurrentPrice = decimal.RequireFromString(price)
	f.catalog[productID] = entry
}

func (f *fakeInventory) setStock(productID uuid.UUID, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.catalog[productID]
	entry.AvailableQty = stock
	f.catalog[productID] = entry
}

func (f *fakeInventory) setOnSale(productID uuid.UUID, onSale bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.catalog[productID]
	entry.OnSale = onSale
	f.catalog[productID] = entry
}

func (f *fakeInventory) deactivate(productID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.catalog[productID]
	entry.Active = false
	f.catalog[productID] = entry
}

func (f *fakeInventory) Availability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*inventory.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.catalog[productID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	result := entry
	result.VariantID = variantID
	return &result, nil
}

// fakeCouponRepo backs the real coupon service with in-memory coupons.
type fakeCouponRepo struct {
	mu              sync.Mutex
	coupons         map[string]*models.Coupon
	redemptions     map[string]int64
	orders          map[string]int64
	findByCodeCalls int
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{
		coupons:     map[string]*models.Coupon{},
		redemptions: map[string]int64{},
		orders:      map[string]int64{},
	}
}

func (f *fakeCouponRepo) put(c *models.Coupon) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = coupon.NormalizeCode(c.Code)
	f.coupons[c.Code] = c
}

func (f *fakeCouponRepo) Create(ctx context.Context, c *models.Coupon) error {
	f.put(c)
	return nil
}

func (f *fakeCouponRepo) Update(ctx context.Context, c *models.Coupon) error {
	f.put(c)
	return nil
}

func (f *fakeCouponRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func (f *fakeCouponRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findByCodeCalls++
	c, ok := f.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponRepo) List(ctx context.Context, params pagination.Params) ([]models.Coupon, *pagination.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Coupon
	for _, c := range f.coupons {
		out = append(out, *c)
	}
	return out, nil, nil
}

func (f *fakeCouponRepo) CountRedemptionsByCustomer(ctx context.Context, couponID uuid.UUID, customerEmail string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redemptions[couponID.String()+"|"+customerEmail], nil
}

func (f *fakeCouponRepo) CountOrdersByCustomer(ctx context.Context, customerEmail string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[customerEmail], nil
}

func (f *fakeCouponRepo) RedeemAtomically(tx *gorm.DB, couponID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.ID != couponID {
			continue
		}
		if c.Status != enums.CouponStatusActive {
			return pkgerrors.New(pkgerrors.CodeCouponError, "coupon is no longer redeemable")
		}
		if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
			return pkgerrors.New(pkgerrors.CodeCouponError, "coupon is no longer redeemable")
		}
		c.IncrementUsage()
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeCouponError, "coupon is no longer redeemable")
}

func (f *fakeCouponRepo) ExpireLapsed(ctx context.Context, now time.Time, limit int) ([]models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lapsed []models.Coupon
	for _, c := range f.coupons {
		if c.Status == enums.CouponStatusActive && c.ValidUntil.Before(now) {
			c.Status = enums.CouponStatusExpired
			lapsed = append(lapsed, *c)
		}
	}
	return lapsed, nil
}

// fakeOutboxInserter records emitted events.
type fakeOutboxInserter struct {
	mu     sync.Mutex
	events []models.OutboxEvent
}

func (f *fakeOutboxInserter) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeOutboxInserter) byType(eventType enums.OutboxEventType) []models.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
