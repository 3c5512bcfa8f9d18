package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

type repo struct {
	client *db.Client
}

// Repo is the persistence surface for coupons and their redemption ledger.
type Repo interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	Update(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, params pagination.Params) ([]models.Coupon, *pagination.Cursor, error)
	CountRedemptionsByCustomer(ctx context.Context, couponID uuid.UUID, customerEmail string) (int64, error)
	CountOrdersByCustomer(ctx context.Context, customerEmail string) (int64, error)
	RedeemAtomically(tx *gorm.DB, couponID uuid.UUID) error
	ExpireLapsed(ctx context.Context, now time.Time, limit int) ([]models.Coupon, error)
}

// NewRepo builds the coupon repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	return &repo{client: client}, nil
}

// NormalizeCode canonicalizes coupon codes for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *repo) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = NormalizeCode(coupon.Code)
	err := r.client.DB().WithContext(ctx).Create(coupon).Error
	if err != nil {
		if db.IsUniqueViolation(err, "uq_coupons_code") {
			return pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return nil
}

func (r *repo) Update(ctx context.Context, coupon *models.Coupon) error {
	err := r.client.DB().WithContext(ctx).Save(coupon).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.client.DB().WithContext(ctx).First(&coupon, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon")
	}
	return &coupon, nil
}

func (r *repo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.client.DB().WithContext(ctx).
		First(&coupon, "code = ?", NormalizeCode(code)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon by code")
	}
	return &coupon, nil
}

func (r *repo) List(ctx context.Context, params pagination.Params) ([]models.Coupon, *pagination.Cursor, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)
	query := r.client.DB().WithContext(ctx).Model(&models.Coupon{})
	query, err := pagination.Apply(query, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var coupons []models.Coupon
	if err := query.Find(&coupons).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}

	var next *pagination.Cursor
	if len(coupons) > params.Limit {
		coupons = coupons[:params.Limit]
		last := coupons[len(coupons)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return coupons, next, nil
}

// CountRedemptionsByCustomer counts finalized redemptions of a coupon by one
// customer, read from the order_coupons ledger.
func (r *repo) CountRedemptionsByCustomer(ctx context.Context, couponID uuid.UUID, customerEmail string) (int64, error) {
	var count int64
	err := r.client.DB().WithContext(ctx).
		Model(&models.OrderCoupon{}).
		Where("coupon_id = ? AND customer_email = ?", couponID, strings.ToLower(customerEmail)).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon redemptions")
	}
	return count, nil
}

func (r *repo) CountOrdersByCustomer(ctx context.Context, customerEmail string) (int64, error) {
	var count int64
	err := r.client.DB().WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_email = ?", strings.ToLower(customerEmail)).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customer orders")
	}
	return count, nil
}

// RedeemAtomically increments times_used inside the caller's transaction with
// a conditional UPDATE. The WHERE clause re-checks status and the usage cap so
// two racing checkouts cannot both take the last redemption; the loser sees
// zero rows affected. When the increment reaches the cap the same statement
// flips the coupon to USED_UP.
func (r *repo) RedeemAtomically(tx *gorm.DB, couponID uuid.UUID) error {
	result := tx.Model(&models.Coupon{}).
		Where("id = ? AND status = ?", couponID, enums.CouponStatusActive).
		Where("usage_limit IS NULL OR times_used < usage_limit").
		Updates(map[string]any{
			"times_used": gorm.Expr("times_used + 1"),
			"status": gorm.Expr(
				"CASE WHEN usage_limit IS NOT NULL AND times_used + 1 >= usage_limit THEN ? ELSE status END",
				enums.CouponStatusUsedUp,
			),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "redeem coupon")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeCouponError, "coupon is no longer redeemable")
	}
	return nil
}

// ExpireLapsed flips ACTIVE coupons whose validity window has passed to
// EXPIRED and returns the affected rows for event emission.
func (r *repo) ExpireLapsed(ctx context.Context, now time.Time, limit int) ([]models.Coupon, error) {
	var lapsed []models.Coupon
	err := r.client.DB().WithContext(ctx).
		Where("status = ? AND valid_until < ?", enums.CouponStatusActive, now).
		Order("valid_until ASC").
		Limit(limit).
		Find(&lapsed).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find lapsed coupons")
	}
	if len(lapsed) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(lapsed))
	for _, c := range lapsed {
		ids = append(ids, c.ID)
	}
	err = r.client.DB().WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id IN ? AND status = ?", ids, enums.CouponStatusActive).
		Update("status", enums.CouponStatusExpired).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire lapsed coupons")
	}
	return lapsed, nil
}
