package cron

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox/payloads"
)

const cartSweepJobName = "cart_sweep"

// CartSweepJob walks the cart lifecycle forward: stale ACTIVE carts become
// ABANDONED, and carts past their expiry deadline become EXPIRED. Each cart
// transitions in its own transaction under the row lock so a sweep never
// fights a live buyer request; per-cart failures are collected, not fatal.
type CartSweepJob struct {
	carts   cart.Repo
	events  *outbox.Service
	cfg     config.CartConfig
	metrics *metrics.CronJobMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewCartSweepJob builds the lifecycle sweep.
func NewCartSweepJob(
	carts cart.Repo,
	events *outbox.Service,
	cfg config.CartConfig,
	m *metrics.CronJobMetrics,
	logg *logger.Logger,
) (*CartSweepJob, error) {
	if carts == nil {
		return nil, errors.New("cart repo required")
	}
	if events == nil {
		return nil, errors.New("outbox service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &CartSweepJob{
		carts:   carts,
		events:  events,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (j *CartSweepJob) Name() string            { return cartSweepJobName }
func (j *CartSweepJob) Interval() time.Duration { return 15 * time.Minute }
func (j *CartSweepJob) LockTTL() time.Duration  { return 10 * time.Minute }

func (j *CartSweepJob) Run(ctx context.Context) error {
	now := j.now()
	var errs error

	abandoned, err := j.abandonStale(ctx, now)
	errs = multierr.Append(errs, err)
	j.metrics.AddSwept(cartSweepJobName, "abandoned", abandoned)

	expired, err := j.expireLapsed(ctx, now)
	errs = multierr.Append(errs, err)
	j.metrics.AddSwept(cartSweepJobName, "expired", expired)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"abandoned": abandoned,
		"expired":   expired,
	})
	j.logg.Info(logCtx, "cart sweep finished")
	return errs
}

func (j *CartSweepJob) abandonStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-j.cfg.AbandonAfter)
	stale, err := j.carts.FindStaleActive(ctx, cutoff, j.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs error
	for _, candidate := range stale {
		changed, err := j.transition(ctx, candidate.ID, enums.EventCartAbandoned, now, func(locked *models.Cart) error {
			if locked.UpdatedAt.After(cutoff) {
				// Touched since the scan; no longer stale.
				return nil
			}
			return locked.MarkAsAbandoned()
		})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if changed {
			count++
		}
	}
	return count, errs
}

func (j *CartSweepJob) expireLapsed(ctx context.Context, now time.Time) (int, error) {
	lapsed, err := j.carts.FindExpired(ctx, now, j.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs error
	for _, candidate := range lapsed {
		changed, err := j.transition(ctx, candidate.ID, enums.EventCartExpired, now, func(locked *models.Cart) error {
			if !locked.IsExpired(now) {
				return nil
			}
			return locked.MarkAsExpired()
		})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if changed {
			count++
		}
	}
	return count, errs
}

// transition applies fn to the locked cart and emits the lifecycle event in
// the same transaction. It reports whether a status change was committed;
// carts re-checked under the lock and found current are left alone.
func (j *CartSweepJob) transition(ctx context.Context, cartID uuid.UUID, eventType enums.OutboxEventType, now time.Time, fn func(*models.Cart) error) (bool, error) {
	changed := false
	err := j.carts.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := j.carts.FindByIDForUpdate(tx, cartID)
		if err != nil {
			return err
		}
		before := locked.Status
		if err := fn(locked); err != nil {
			return err
		}
		if locked.Status == before {
			return nil
		}
		if err := j.carts.Save(tx, locked); err != nil {
			return err
		}
		changed = true
		return j.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateCart,
			AggregateID:   locked.ID,
			Version:       1,
			Data: payloads.CartLifecycleEvent{
				CartID:    locked.ID,
				UserID:    locked.UserID,
				SessionID: locked.SessionID,
				Status:    locked.Status.String(),
				ChangedAt: now.UTC(),
			},
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
