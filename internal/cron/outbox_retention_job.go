package cron

import (
	"context"
	"errors"
	"time"

	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
)

const outboxRetentionJobName = "outbox_retention"

// OutboxRetentionJob prunes published outbox rows past the retention window.
type OutboxRetentionJob struct {
	repo    *outbox.Repository
	cfg     config.OutboxConfig
	metrics *metrics.CronJobMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewOutboxRetentionJob builds the outbox prune.
func NewOutboxRetentionJob(repo *outbox.Repository, cfg config.OutboxConfig, m *metrics.CronJobMetrics, logg *logger.Logger) (*OutboxRetentionJob, error) {
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &OutboxRetentionJob{
		repo:    repo,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (j *OutboxRetentionJob) Name() string            { return outboxRetentionJobName }
func (j *OutboxRetentionJob) Interval() time.Duration { return 12 * time.Hour }
func (j *OutboxRetentionJob) LockTTL() time.Duration  { return 15 * time.Minute }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeletePublishedBefore(ctx, j.now().Add(-j.cfg.RetentionAge))
	if err != nil {
		return err
	}
	j.metrics.AddSwept(outboxRetentionJobName, "deleted", int(deleted))

	logCtx := j.logg.WithField(ctx, "deleted", deleted)
	j.logg.Info(logCtx, "outbox retention finished")
	return nil
}
