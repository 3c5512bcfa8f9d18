package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
)

// Service runs registered jobs on their intervals, each guarded by the
// distributed lock so multiple worker replicas do not double-run a sweep.
type Service struct {
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
}

// NewService builds the cron runner.
func NewService(registry *Registry, locker Locker, m *metrics.CronJobMetrics, logg *logger.Logger) (*Service, error) {
	if registry == nil {
		return nil, errors.New("registry required")
	}
	if locker == nil {
		return nil, errors.New("locker required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		registry: registry,
		locker:   locker,
		metrics:  m,
		logg:     logg,
	}, nil
}

// Start launches one ticker goroutine per job and blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.registry.Jobs() {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Service) runLoop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	// First pass runs immediately so a fresh deploy does not wait a full
	// interval before sweeping.
	s.runOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Service) runOnce(ctx context.Context, job Job) {
	logCtx := s.logg.WithField(ctx, "job", job.Name())

	release, acquired, err := s.locker.Acquire(ctx, job.Name(), job.LockTTL())
	if err != nil {
		s.logg.Error(logCtx, "acquiring job lock", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	if !acquired {
		s.logg.Info(logCtx, "job lock held elsewhere, skipping")
		return
	}
	defer release(ctx)

	started := time.Now()
	err = job.Run(logCtx)
	s.metrics.ObserveDuration(job.Name(), time.Since(started))
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(logCtx, "job run failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(logCtx, "job run completed")
}
