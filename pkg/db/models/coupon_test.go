package models

import (
	"testing"
	"time"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
)

func activeCoupon(couponType enums.CouponType, value string) *Coupon {
	return &Coupon{
		Code:          "TEST",
		Name:          "Test Coupon",
		Type:          couponType,
		DiscountValue: dec(value),
		ValidFrom:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		Status:        enums.CouponStatusActive,
	}
}

func TestCoupon_PercentageDiscount(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypePercentage, "10")
	got := coupon.CalculateDiscount(dec("60.00"))
	if !got.Equal(dec("6.00")) {
		t.Fatalf("discount = %s, want 6.00", got)
	}
}

func TestCoupon_FixedAmountClampedByMaximum(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypeFixedAmount, "50.00")
	max := dec("10.00")
	coupon.MaximumDiscount = &max
	got := coupon.CalculateDiscount(dec("60.00"))
	if !got.Equal(dec("10.00")) {
		t.Fatalf("discount = %s, want 10.00", got)
	}
}

func TestCoupon_DiscountNeverExceedsOrderAmount(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypeFixedAmount, "80.00")
	got := coupon.CalculateDiscount(dec("25.00"))
	if !got.Equal(dec("25.00")) {
		t.Fatalf("discount = %s, want 25.00", got)
	}
}

func TestCoupon_BelowMinimumOrderYieldsZero(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypePercentage, "10")
	min := dec("100.00")
	coupon.MinimumOrderAmount = &min
	got := coupon.CalculateDiscount(dec("60.00"))
	if !got.IsZero() {
		t.Fatalf("discount = %s, want 0", got)
	}
}

func TestCoupon_ShippingAndBOGOBypassAmountCalculator(t *testing.T) {
	for _, couponType := range []enums.CouponType{enums.CouponTypeFreeShipping, enums.CouponTypeBuyOneGetOne} {
		coupon := activeCoupon(couponType, "0")
		if got := coupon.CalculateDiscount(dec("60.00")); !got.IsZero() {
			t.Fatalf("%s: discount = %s, want 0", couponType, got)
		}
	}
}

func TestCoupon_CanBeUsedWindowAndStatus(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypePercentage, "10")
	inside := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !coupon.CanBeUsed(inside) {
		t.Fatal("expected coupon usable inside window")
	}
	if coupon.CanBeUsed(coupon.ValidFrom.Add(-time.Minute)) {
		t.Fatal("coupon usable before validFrom")
	}
	if coupon.CanBeUsed(coupon.ValidUntil.Add(time.Minute)) {
		t.Fatal("coupon usable after validUntil")
	}
	coupon.Status = enums.CouponStatusDisabled
	if coupon.CanBeUsed(inside) {
		t.Fatal("disabled coupon reported usable")
	}
}

func TestCoupon_UsageLimitBoundary(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypePercentage, "10")
	limit := 1
	coupon.UsageLimit = &limit
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	if !coupon.CanBeUsed(now) {
		t.Fatal("expected coupon usable before first redemption")
	}
	coupon.IncrementUsage()
	if coupon.CanBeUsed(now) {
		t.Fatal("coupon still usable after hitting usage limit")
	}
	if coupon.Status != enums.CouponStatusUsedUp {
		t.Fatalf("status = %s, want USED_UP", coupon.Status)
	}
}

func TestCoupon_IncrementWithoutLimitStaysActive(t *testing.T) {
	coupon := activeCoupon(enums.CouponTypePercentage, "10")
	for i := 0; i < 5; i++ {
		coupon.IncrementUsage()
	}
	if coupon.Status != enums.CouponStatusActive {
		t.Fatalf("status = %s, want ACTIVE", coupon.Status)
	}
	if coupon.TimesUsed != 5 {
		t.Fatalf("times_used = %d, want 5", coupon.TimesUsed)
	}
}
