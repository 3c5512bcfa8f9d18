package main

import (
	"context"
	"errors"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
)

// publisher drains the outbox table into Pub/Sub. Each poll fetches a batch
// of pending rows and publishes them in order; failures bump the attempt
// counter and are retried on a later poll.
type publisher struct {
	client *db.Client
	repo   *outbox.Repository
	topic  *pubsubv2.Publisher
	cfg    config.OutboxConfig
	logg   *logger.Logger
}

func newPublisher(client *db.Client, repo *outbox.Repository, topic *pubsubv2.Publisher, cfg config.OutboxConfig, logg *logger.Logger) (*publisher, error) {
	if client == nil || repo == nil || topic == nil || logg == nil {
		return nil, errors.New("publisher dependencies missing")
	}
	return &publisher{
		client: client,
		repo:   repo,
		topic:  topic,
		cfg:    cfg,
		logg:   logg,
	}, nil
}

func (p *publisher) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logg.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

func (p *publisher) drainOnce(ctx context.Context) error {
	return p.client.WithTx(ctx, func(tx *gorm.DB) error {
		pending, err := p.repo.FetchPending(tx, p.cfg.BatchSize, p.cfg.MaxAttempts)
		if err != nil {
			return err
		}

		for i := range pending {
			event := &pending[i]
			if err := p.publishOne(ctx, event); err != nil {
				if markErr := p.repo.MarkFailed(tx, event.ID, err, p.cfg.MaxAttempts); markErr != nil {
					return markErr
				}
				logCtx := p.logg.WithFields(ctx, map[string]any{
					"event_id":   event.ID.String(),
					"event_type": event.EventType.String(),
				})
				p.logg.Warn(logCtx, "event publish failed, will retry")
				continue
			}
			if err := p.repo.MarkPublished(tx, event.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *publisher) publishOne(ctx context.Context, event *models.OutboxEvent) error {
	result := p.topic.Publish(ctx, &pubsubv2.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"eventType":     event.EventType.String(),
			"aggregateType": event.AggregateType.String(),
			"aggregateId":   event.AggregateID.String(),
		},
	})
	_, err := result.Get(ctx)
	return err
}
