package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCartConfig() config.CartConfig {
	return config.CartConfig{
		GuestTTL:          168 * time.Hour,
		AbandonAfter:      72 * time.Hour,
		EmptyRetention:    24 * time.Hour,
		TerminalRetention: 90 * 24 * time.Hour,
		SweepBatchSize:    200,
	}
}

func newSweepJob(t *testing.T, repo *fakeCartRepo, sink *eventSink, now time.Time) *CartSweepJob {
	t.Helper()
	job, err := NewCartSweepJob(repo, outbox.NewService(sink, nil), testCartConfig(), nil, testLogger())
	require.NoError(t, err)
	job.now = func() time.Time { return now }
	return job
}

func seedCart(repo *fakeCartRepo, status enums.CartStatus, updatedAt time.Time, expiresAt *time.Time) uuid.UUID {
	c := &models.Cart{
		ID:        uuid.New(),
		Status:    status,
		Currency:  enums.CurrencyUSD,
		UpdatedAt: updatedAt,
		ExpiresAt: expiresAt,
	}
	userID := uuid.New()
	c.UserID = &userID
	repo.put(c)
	return c.ID
}

func TestCartSweepAbandonsStaleActiveCarts(t *testing.T) {
	repo := newFakeCartRepo()
	sink := &eventSink{}
	now := time.Now()

	staleID := seedCart(repo, enums.CartStatusActive, now.Add(-80*time.Hour), nil)
	freshID := seedCart(repo, enums.CartStatusActive, now.Add(-time.Hour), nil)

	job := newSweepJob(t, repo, sink, now)
	require.NoError(t, job.Run(context.Background()))

	stale, _ := repo.FindByID(context.Background(), staleID)
	fresh, _ := repo.FindByID(context.Background(), freshID)
	assert.Equal(t, enums.CartStatusAbandoned, stale.Status)
	assert.Equal(t, enums.CartStatusActive, fresh.Status)

	abandoned := sink.byType(enums.EventCartAbandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, staleID, abandoned[0].aggregateID)
}

func TestCartSweepExpiresLapsedCarts(t *testing.T) {
	repo := newFakeCartRepo()
	sink := &eventSink{}
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	lapsedID := seedCart(repo, enums.CartStatusActive, now, &past)
	liveID := seedCart(repo, enums.CartStatusActive, now, &future)
	abandonedLapsedID := seedCart(repo, enums.CartStatusAbandoned, now, &past)

	job := newSweepJob(t, repo, sink, now)
	require.NoError(t, job.Run(context.Background()))

	lapsed, _ := repo.FindByID(context.Background(), lapsedID)
	live, _ := repo.FindByID(context.Background(), liveID)
	abandonedLapsed, _ := repo.FindByID(context.Background(), abandonedLapsedID)
	assert.Equal(t, enums.CartStatusExpired, lapsed.Status)
	assert.Equal(t, enums.CartStatusActive, live.Status)
	assert.Equal(t, enums.CartStatusExpired, abandonedLapsed.Status)

	assert.Len(t, sink.byType(enums.EventCartExpired), 2)
}

func TestCartSweepSkipsCartsTouchedAfterScan(t *testing.T) {
	repo := newFakeCartRepo()
	sink := &eventSink{}
	now := time.Now()

	// Stale at scan time, but updated again before the row lock is taken.
	id := seedCart(repo, enums.CartStatusActive, now.Add(-80*time.Hour), nil)
	job := newSweepJob(t, repo, sink, now)

	stored, _ := repo.FindByID(context.Background(), id)
	stored.UpdatedAt = now
	require.NoError(t, repo.Save(nil, stored))

	changed, err := job.transition(context.Background(), id, enums.EventCartAbandoned, now, func(locked *models.Cart) error {
		if locked.UpdatedAt.After(now.Add(-job.cfg.AbandonAfter)) {
			return nil
		}
		return locked.MarkAsAbandoned()
	})
	require.NoError(t, err)
	assert.False(t, changed)

	after, _ := repo.FindByID(context.Background(), id)
	assert.Equal(t, enums.CartStatusActive, after.Status)
	assert.Empty(t, sink.byType(enums.EventCartAbandoned))
}

// scanOverrideRepo pins the stale scan result so tests can race a cart update
// against the sweep.
type scanOverrideRepo struct {
	*fakeCartRepo
	stale []models.Cart
}

func (r *scanOverrideRepo) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	return r.stale, nil
}

func TestCartSweepCountsOnlyCommittedTransitions(t *testing.T) {
	base := newFakeCartRepo()
	sink := &eventSink{}
	now := time.Now()

	staleID := seedCart(base, enums.CartStatusActive, now.Add(-80*time.Hour), nil)
	touchedID := seedCart(base, enums.CartStatusActive, now, nil)

	// The scan claims both are stale; the lock re-check keeps the touched one.
	repo := &scanOverrideRepo{fakeCartRepo: base, stale: []models.Cart{{ID: staleID}, {ID: touchedID}}}
	job, err := NewCartSweepJob(repo, outbox.NewService(sink, nil), testCartConfig(), nil, testLogger())
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	count, runErr := job.abandonStale(context.Background(), now)
	require.NoError(t, runErr)
	assert.Equal(t, 1, count)
	assert.Len(t, sink.byType(enums.EventCartAbandoned), 1)
}

func TestCartRetentionReportsDeletedCounts(t *testing.T) {
	repo := newFakeCartRepo()
	repo.emptyDeleted = 4
	repo.terminalDeleted = 9

	job, err := NewCartRetentionJob(repo, testCartConfig(), nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
}

func TestServiceSkipsJobWhenLockHeldElsewhere(t *testing.T) {
	registry := NewRegistry()
	locker := &stubLocker{held: true}
	svc, err := NewService(registry, locker, nil, testLogger())
	require.NoError(t, err)

	job := &countingJob{}
	svc.runOnce(context.Background(), job)

	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 0, job.runs)
}

func TestServiceRunsJobAndReleasesLock(t *testing.T) {
	registry := NewRegistry()
	locker := &stubLocker{}
	svc, err := NewService(registry, locker, nil, testLogger())
	require.NoError(t, err)

	job := &countingJob{}
	svc.runOnce(context.Background(), job)

	assert.Equal(t, 1, job.runs)
	assert.Equal(t, 1, locker.releases)
}

type countingJob struct {
	runs int
}

func (j *countingJob) Name() string            { return "counting" }
func (j *countingJob) Interval() time.Duration { return time.Minute }
func (j *countingJob) LockTTL() time.Duration  { return time.Minute }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}
