package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
)

type repo struct {
	client *db.Client
}

// Repo is the persistence surface for carts and their lines. Methods taking a
// *gorm.DB participate in the caller's transaction; the rest run standalone.
type Repo interface {
	Create(ctx context.Context, cart *models.Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	FindActiveByOwnerForUpdate(tx *gorm.DB, owner Owner) (*models.Cart, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Cart, error)
	Save(tx *gorm.DB, cart *models.Cart) error
	UpdateStatus(tx *gorm.DB, cartID uuid.UUID, status enums.CartStatus) error
	CreateItem(tx *gorm.DB, item *models.CartItem) error
	SaveItem(tx *gorm.DB, item *models.CartItem) error
	DeleteItem(tx *gorm.DB, itemID uuid.UUID) error
	DeleteItems(tx *gorm.DB, cartID uuid.UUID) error
	FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error)
	DeleteEmptyOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewRepo builds the cart repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	return &repo{client: client}, nil
}

func (r *repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.client.WithTx(ctx, fn)
}

func (r *repo) Create(ctx context.Context, cart *models.Cart) error {
	err := r.client.DB().WithContext(ctx).Create(cart).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.client.DB().WithContext(ctx).
		Preload("Items").
		First(&cart, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart")
	}
	return &cart, nil
}

func ownerClause(query *gorm.DB, owner Owner) *gorm.DB {
	if owner.UserID != nil {
		return query.Where("user_id = ?", *owner.UserID)
	}
	return query.Where("session_id = ?", *owner.SessionID)
}

func (r *repo) FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	query := ownerClause(r.client.DB().WithContext(ctx), owner).
		Where("status = ?", enums.CartStatusActive).
		Preload("Items").
		Order("created_at DESC")
	err := query.First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find active cart")
	}
	return &cart, nil
}

// FindActiveByOwnerForUpdate locks the owner's active cart row for the
// remainder of the transaction. Concurrent mutations of the same cart
// serialize on this lock.
func (r *repo) FindActiveByOwnerForUpdate(tx *gorm.DB, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	query := ownerClause(tx, owner).
		Where("status = ?", enums.CartStatusActive).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("created_at DESC")
	err := query.First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock active cart")
	}
	// Items are loaded after the lock is held so the line set cannot move
	// underneath the caller.
	if err := tx.Where("cart_id = ?", cart.ID).Order("created_at ASC").Find(&cart.Items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return &cart, nil
}

func (r *repo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
	}
	if err := tx.Where("cart_id = ?", cart.ID).Order("created_at ASC").Find(&cart.Items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return &cart, nil
}

// Save writes the cart header only. Item rows are managed individually so an
// aggregate save never resurrects deleted lines.
func (r *repo) Save(tx *gorm.DB, cart *models.Cart) error {
	err := tx.Omit("Items").Save(cart).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (r *repo) UpdateStatus(tx *gorm.DB, cartID uuid.UUID, status enums.CartStatus) error {
	err := tx.Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("status", status).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart status")
	}
	return nil
}

func (r *repo) CreateItem(tx *gorm.DB, item *models.CartItem) error {
	err := tx.Create(item).Error
	if err != nil {
		if db.IsUniqueViolation(err, "uq_cart_items_cart_product_variant") {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already holds this product line")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
	}
	return nil
}

func (r *repo) SaveItem(tx *gorm.DB, item *models.CartItem) error {
	err := tx.Save(item).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return nil
}

func (r *repo) DeleteItem(tx *gorm.DB, itemID uuid.UUID) error {
	err := tx.Delete(&models.CartItem{}, "id = ?", itemID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return nil
}

func (r *repo) DeleteItems(tx *gorm.DB, cartID uuid.UUID) error {
	err := tx.Delete(&models.CartItem{}, "cart_id = ?", cartID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart items")
	}
	return nil
}

// FindStaleActive lists ACTIVE carts untouched since the cutoff, oldest
// first, for the abandonment sweep.
func (r *repo) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.client.DB().WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale carts")
	}
	return carts, nil
}

// FindExpired lists non-terminal carts whose expires_at has passed.
func (r *repo) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.client.DB().WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Where("status IN ?", []enums.CartStatus{enums.CartStatusActive, enums.CartStatusAbandoned}).
		Order("expires_at ASC").
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired carts")
	}
	return carts, nil
}

// DeleteEmptyOlderThan hard-deletes old carts that never received a line.
func (r *repo) DeleteEmptyOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.client.DB().WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Where("id NOT IN (?)", r.client.DB().Model(&models.CartItem{}).Select("cart_id")).
		Delete(&models.Cart{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "delete empty carts")
	}
	return result.RowsAffected, nil
}

// DeleteTerminalOlderThan purges terminal carts past the retention window,
// removing their lines first for databases without cascading deletes.
func (r *repo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := []enums.CartStatus{
		enums.CartStatusConverted,
		enums.CartStatusMerged,
		enums.CartStatusExpired,
	}
	var deleted int64
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		subquery := tx.Model(&models.Cart{}).
			Select("id").
			Where("status IN ? AND updated_at < ?", terminal, cutoff)
		if err := tx.Where("cart_id IN (?)", subquery).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		result := tx.
			Where("status IN ? AND updated_at < ?", terminal, cutoff).
			Delete(&models.Cart{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete terminal carts")
	}
	return deleted, nil
}
