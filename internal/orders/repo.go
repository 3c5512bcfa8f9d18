package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/pagination"
)

type repo struct {
	client *db.Client
}

// Repo persists orders and the append-only order_coupons ledger.
type Repo interface {
	Create(tx *gorm.DB, order *models.Order) error
	CreateOrderCoupon(tx *gorm.DB, record *models.OrderCoupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	ListOrderCoupons(ctx context.Context, orderID uuid.UUID) ([]models.OrderCoupon, error)
}

// NewRepo builds the order repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	return &repo{client: client}, nil
}

// NewOrderNumber generates a human-readable unique order reference.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix)))
}

func (r *repo) Create(tx *gorm.DB, order *models.Order) error {
	order.CustomerEmail = strings.ToLower(strings.TrimSpace(order.CustomerEmail))
	err := tx.Create(order).Error
	if err != nil {
		if db.IsUniqueViolation(err, "uq_orders_order_number") {
			return pkgerrors.New(pkgerrors.CodeConflict, "order number collision")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repo) CreateOrderCoupon(tx *gorm.DB, record *models.OrderCoupon) error {
	record.CustomerEmail = strings.ToLower(strings.TrimSpace(record.CustomerEmail))
	err := tx.Create(record).Error
	if err != nil {
		if db.IsUniqueViolation(err, "uq_order_coupons_order_coupon") {
			return pkgerrors.New(pkgerrors.CodeConflict, "coupon already recorded for this order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order coupon record")
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.client.DB().WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	return &order, nil
}

func (r *repo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)
	query := r.client.DB().WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)
	query, err := pagination.Apply(query, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var results []models.Order
	if err := query.Find(&results).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	var next *pagination.Cursor
	if len(results) > params.Limit {
		results = results[:params.Limit]
		last := results[len(results)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

func (r *repo) ListOrderCoupons(ctx context.Context, orderID uuid.UUID) ([]models.OrderCoupon, error) {
	var records []models.OrderCoupon
	err := r.client.DB().WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order coupons")
	}
	return records, nil
}
