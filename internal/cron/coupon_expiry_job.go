package cron

import (
	"context"
	"errors"
	"time"

	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
)

const couponExpiryJobName = "coupon_expiry"

// CouponExpiryJob retires ACTIVE coupons whose validity window has lapsed.
// Redemption paths re-check the window themselves, so this sweep is about
// keeping listings honest, not correctness.
type CouponExpiryJob struct {
	coupons   coupon.Repo
	batchSize int
	metrics   *metrics.CronJobMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewCouponExpiryJob builds the coupon expiry sweep.
func NewCouponExpiryJob(coupons coupon.Repo, batchSize int, m *metrics.CronJobMetrics, logg *logger.Logger) (*CouponExpiryJob, error) {
	if coupons == nil {
		return nil, errors.New("coupon repo required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &CouponExpiryJob{
		coupons:   coupons,
		batchSize: batchSize,
		metrics:   m,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (j *CouponExpiryJob) Name() string            { return couponExpiryJobName }
func (j *CouponExpiryJob) Interval() time.Duration { return time.Hour }
func (j *CouponExpiryJob) LockTTL() time.Duration  { return 15 * time.Minute }

func (j *CouponExpiryJob) Run(ctx context.Context) error {
	lapsed, err := j.coupons.ExpireLapsed(ctx, j.now(), j.batchSize)
	if err != nil {
		return err
	}
	j.metrics.AddSwept(couponExpiryJobName, "expired", len(lapsed))

	logCtx := j.logg.WithField(ctx, "expired", len(lapsed))
	j.logg.Info(logCtx, "coupon expiry finished")
	return nil
}
