package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
)

const cartRetentionJobName = "cart_retention"

// CartRetentionJob purges carts that no longer carry business value: old
// carts that never held an item, and terminal carts past the retention
// window. Purges are hard deletes; the outbox keeps the lifecycle history.
type CartRetentionJob struct {
	carts   cart.Repo
	cfg     config.CartConfig
	metrics *metrics.CronJobMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewCartRetentionJob builds the retention purge.
func NewCartRetentionJob(
	carts cart.Repo,
	cfg config.CartConfig,
	m *metrics.CronJobMetrics,
	logg *logger.Logger,
) (*CartRetentionJob, error) {
	if carts == nil {
		return nil, errors.New("cart repo required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &CartRetentionJob{
		carts:   carts,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (j *CartRetentionJob) Name() string            { return cartRetentionJobName }
func (j *CartRetentionJob) Interval() time.Duration { return 6 * time.Hour }
func (j *CartRetentionJob) LockTTL() time.Duration  { return 30 * time.Minute }

func (j *CartRetentionJob) Run(ctx context.Context) error {
	now := j.now()
	var errs error

	emptyDeleted, err := j.carts.DeleteEmptyOlderThan(ctx, now.Add(-j.cfg.EmptyRetention))
	errs = multierr.Append(errs, err)
	j.metrics.AddSwept(cartRetentionJobName, "empty_deleted", int(emptyDeleted))

	terminalDeleted, err := j.carts.DeleteTerminalOlderThan(ctx, now.Add(-j.cfg.TerminalRetention))
	errs = multierr.Append(errs, err)
	j.metrics.AddSwept(cartRetentionJobName, "terminal_deleted", int(terminalDeleted))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"empty_deleted":    emptyDeleted,
		"terminal_deleted": terminalDeleted,
	})
	j.logg.Info(logCtx, "cart retention finished")
	return errs
}
