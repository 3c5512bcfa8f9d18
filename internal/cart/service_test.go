package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
)

type testEnv struct {
	svc       Service
	repo      *fakeRepo
	inventory *fakeInventory
	coupons   *fakeCouponRepo
	outbox    *fakeOutboxInserter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	repo := newFakeRepo()
	inv := newFakeInventory()
	couponRepo := newFakeCouponRepo()
	sink := &fakeOutboxInserter{}

	couponSvc, err := coupon.NewService(couponRepo, logg)
	require.NoError(t, err)

	svc, err := NewService(repo, inv, couponSvc, outbox.NewService(sink, nil), config.CartConfig{
		GuestTTL:       168 * time.Hour,
		SweepBatchSize: 200,
	}, logg)
	require.NoError(t, err)

	return &testEnv{svc: svc, repo: repo, inventory: inv, coupons: couponRepo, outbox: sink}
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(value)
}

func activeCoupon(code string, couponType enums.CouponType, value string) *models.Coupon {
	return &models.Coupon{
		Code:               code,
		Name:               code,
		Type:               couponType,
		DiscountValue:      decimal.RequireFromString(value),
		ValidFrom:          time.Now().Add(-time.Hour),
		ValidUntil:         time.Now().Add(time.Hour),
		Status:             enums.CouponStatusActive,
		AppliesToSaleItems: true,
	}
}

func TestAddItemCreatesGuestCartWithExpiry(t *testing.T) {
	env := newTestEnv(t)
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 10)

	result, err := env.svc.AddItem(context.Background(), GuestOwner("sess-1"), AddItemInput{
		ProductID: productID,
		Quantity:  3,
	})
	require.NoError(t, err)

	require.NotNil(t, result.ExpiresAt)
	assert.True(t, result.ExpiresAt.After(time.Now().Add(167*time.Hour)))
	require.Len(t, result.Items, 1)
	assert.True(t, result.Subtotal.Equal(dec(t, "60.00")), "subtotal = %s", result.Subtotal)
	assert.True(t, result.Total.Equal(dec(t, "60.00")))
}

func TestAddItemDeduplicatesByProductAndVariant(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-dedup")
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 2})
	require.NoError(t, err)

	result, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, 5, result.Items[0].Quantity)
	assert.True(t, result.Subtotal.Equal(dec(t, "50.00")))
}

func TestAddItemKeepsPriceSnapshot(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-snapshot")
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	// Catalog price moves; the existing line keeps its add-time snapshot even
	// when more units are added.
	env.inventory.setPrice(productID, "99.00")
	result, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.True(t, result.Items[0].UnitPrice.Equal(dec(t, "10.00")))
	assert.True(t, result.Subtotal.Equal(dec(t, "20.00")))
}

func TestAddItemRejectsInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-stock")
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 4)

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	_, err = env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 2})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-qty")
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	withItem, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 2})
	require.NoError(t, err)

	result, err := env.svc.UpdateItemQuantity(context.Background(), owner, withItem.Items[0].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.True(t, result.Total.IsZero())
}

func TestSaveForLaterExcludesLineFromTotals(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-sfl")
	productA := uuid.New()
	productB := uuid.New()
	env.inventory.add(productA, "10.00", 100)
	env.inventory.add(productB, "5.00", 100)

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productA, Quantity: 1})
	require.NoError(t, err)
	withBoth, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productB, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, withBoth.Items, 2)

	var savedID uuid.UUID
	for _, item := range withBoth.Items {
		if item.ProductID == productB {
			savedID = item.ID
		}
	}

	parked, err := env.svc.SaveItemForLater(context.Background(), owner, savedID)
	require.NoError(t, err)
	assert.True(t, parked.Subtotal.Equal(dec(t, "10.00")))

	restored, err := env.svc.RestoreItem(context.Background(), owner, savedID)
	require.NoError(t, err)
	assert.True(t, restored.Subtotal.Equal(dec(t, "20.00")))
}

func TestApplyPercentageCoupon(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-pct")
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 100)
	env.coupons.put(activeCoupon("SAVE10", enums.CouponTypePercentage, "10"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	result, err := env.svc.ApplyCoupon(context.Background(), owner, "save10", "buyer@example.com")
	require.NoError(t, err)

	require.NotNil(t, result.AppliedCouponCode)
	assert.Equal(t, "SAVE10", *result.AppliedCouponCode)
	assert.True(t, result.CouponDiscount.Equal(dec(t, "6.00")), "discount = %s", result.CouponDiscount)
	assert.True(t, result.Total.Equal(dec(t, "54.00")))
}

func TestApplyCouponFetchesCouponOnce(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-once")
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 100)
	env.coupons.put(activeCoupon("SAVE10", enums.CouponTypePercentage, "10"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	env.coupons.findByCodeCalls = 0
	_, err = env.svc.ApplyCoupon(context.Background(), owner, "SAVE10", "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, env.coupons.findByCodeCalls)
}

func TestApplySecondCouponRejected(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-second")
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 100)
	env.coupons.put(activeCoupon("FIRST", enums.CouponTypePercentage, "10"))
	env.coupons.put(activeCoupon("SECOND", enums.CouponTypePercentage, "20"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.ApplyCoupon(context.Background(), owner, "FIRST", "")
	require.NoError(t, err)

	_, err = env.svc.ApplyCoupon(context.Background(), owner, "SECOND", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestFreeShippingCouponDiscountsShippingFee(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-ship")
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 100)
	env.coupons.put(activeCoupon("SHIPFREE", enums.CouponTypeFreeShipping, "0"))

	withItem, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	// Give the cart a shipping fee the coupon can cancel.
	withItem.ShippingFee = dec(t, "7.50")
	withItem.RecalculateTotals()
	require.NoError(t, env.repo.Save(nil, withItem))

	result, err := env.svc.ApplyCoupon(context.Background(), owner, "SHIPFREE", "")
	require.NoError(t, err)

	assert.True(t, result.CouponDiscount.Equal(dec(t, "7.50")))
	assert.True(t, result.Total.Equal(dec(t, "20.00")))
}

func TestBuyOneGetOneGrantsCheapestUnit(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-bogo")
	productA := uuid.New()
	productB := uuid.New()
	env.inventory.add(productA, "30.00", 100)
	env.inventory.add(productB, "12.00", 100)
	env.coupons.put(activeCoupon("BOGO", enums.CouponTypeBuyOneGetOne, "0"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productA, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productB, Quantity: 1})
	require.NoError(t, err)

	result, err := env.svc.ApplyCoupon(context.Background(), owner, "BOGO", "")
	require.NoError(t, err)
	assert.True(t, result.CouponDiscount.Equal(dec(t, "12.00")))
}

func TestBuyOneGetOneRequiresTwoUnits(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-bogo-one")
	productID := uuid.New()
	env.inventory.add(productID, "30.00", 100)
	env.coupons.put(activeCoupon("BOGO", enums.CouponTypeBuyOneGetOne, "0"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	_, err = env.svc.ApplyCoupon(context.Background(), owner, "BOGO", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCouponError))
}

func TestCouponExcludingSaleItemsSeesReducedSubtotal(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-sale")
	fullPrice := uuid.New()
	onSale := uuid.New()
	env.inventory.add(fullPrice, "50.00", 100)
	env.inventory.add(onSale, "40.00", 100)
	env.inventory.setOnSale(onSale, true)

	noSale := activeCoupon("NOSALE", enums.CouponTypePercentage, "10")
	noSale.AppliesToSaleItems = false
	env.coupons.put(noSale)

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: fullPrice, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: onSale, Quantity: 1})
	require.NoError(t, err)

	result, err := env.svc.ApplyCoupon(context.Background(), owner, "NOSALE", "")
	require.NoError(t, err)

	// 10% of the $50 full-price line only.
	assert.True(t, result.CouponDiscount.Equal(dec(t, "5.00")))
}

func TestRemoveCouponRestoresTotal(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-remove")
	productID := uuid.New()
	env.inventory.add(productID, "20.00", 100)
	env.coupons.put(activeCoupon("SAVE10", enums.CouponTypePercentage, "10"))

	_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.ApplyCoupon(context.Background(), owner, "SAVE10", "")
	require.NoError(t, err)

	result, err := env.svc.RemoveCoupon(context.Background(), owner)
	require.NoError(t, err)
	assert.Nil(t, result.AppliedCouponCode)
	assert.True(t, result.Total.Equal(dec(t, "20.00")))
}

func TestRefreshWarningsFlagsCatalogDrift(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-warn")
	gone := uuid.New()
	pricey := uuid.New()
	scarce := uuid.New()
	env.inventory.add(gone, "10.00", 100)
	env.inventory.add(pricey, "10.00", 100)
	env.inventory.add(scarce, "10.00", 100)

	for _, p := range []uuid.UUID{gone, pricey, scarce} {
		_, err := env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: p, Quantity: 5})
		require.NoError(t, err)
	}

	env.inventory.deactivate(gone)
	env.inventory.setPrice(pricey, "12.00")
	env.inventory.setStock(scarce, 2)

	result, err := env.svc.RefreshWarnings(context.Background(), owner)
	require.NoError(t, err)

	byProduct := map[uuid.UUID]models.CartItem{}
	for _, item := range result.Items {
		byProduct[item.ProductID] = item
	}
	assert.True(t, byProduct[gone].Warnings.Has(enums.CartItemWarningProductInactive))
	assert.True(t, byProduct[pricey].Warnings.Has(enums.CartItemWarningPriceChanged))
	assert.True(t, byProduct[scarce].Warnings.Has(enums.CartItemWarningInsufficientStock))
	// Snapshot price is untouched even when flagged.
	assert.True(t, byProduct[pricey].UnitPrice.Equal(dec(t, "10.00")))
}

func TestExpiredCartRejectsMutation(t *testing.T) {
	env := newTestEnv(t)
	owner := GuestOwner("sess-expired")
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	created, err := env.svc.GetOrCreateCart(context.Background(), owner)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	created.ExpiresAt = &past
	require.NoError(t, env.repo.Save(nil, created))

	_, err = env.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: productID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}
