package cron

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
)

type fakeCartRepo struct {
	mu              sync.Mutex
	carts           map[uuid.UUID]*models.Cart
	emptyDeleted    int64
	terminalDeleted int64
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func (r *fakeCartRepo) put(c *models.Cart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cc := *c
	r.carts[c.ID] = &cc
}

func (r *fakeCartRepo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func (r *fakeCartRepo) Create(ctx context.Context, c *models.Cart) error {
	r.put(c)
	return nil
}

func (r *fakeCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	cc := *c
	return &cc, nil
}

func (r *fakeCartRepo) FindActiveByOwner(ctx context.Context, owner cart.Owner) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
}

func (r *fakeCartRepo) FindActiveByOwnerForUpdate(tx *gorm.DB, owner cart.Owner) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
}

func (r *fakeCartRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Cart, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeCartRepo) Save(tx *gorm.DB, c *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := *c
	r.carts[c.ID] = &cc
	return nil
}

func (r *fakeCartRepo) UpdateStatus(tx *gorm.DB, cartID uuid.UUID, status enums.CartStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[cartID]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCartRepo) CreateItem(tx *gorm.DB, item *models.CartItem) error { return nil }
func (r *fakeCartRepo) SaveItem(tx *gorm.DB, item *models.CartItem) error  { return nil }
func (r *fakeCartRepo) DeleteItem(tx *gorm.DB, itemID uuid.UUID) error     { return nil }
func (r *fakeCartRepo) DeleteItems(tx *gorm.DB, cartID uuid.UUID) error    { return nil }

func (r *fakeCartRepo) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Cart
	for _, c := range r.carts {
		if c.Status == enums.CartStatusActive && c.UpdatedAt.Before(cutoff) {
			out = append(out, *c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeCartRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Cart
	for _, c := range r.carts {
		sweepable := c.Status == enums.CartStatusActive || c.Status == enums.CartStatusAbandoned
		if sweepable && c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			out = append(out, *c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeCartRepo) DeleteEmptyOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.emptyDeleted, nil
}

func (r *fakeCartRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.terminalDeleted, nil
}

type recordedEvent struct {
	eventType   enums.OutboxEventType
	aggregateID uuid.UUID
}

type eventSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *eventSink) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{
		eventType:   event.EventType,
		aggregateID: event.AggregateID,
	})
	return nil
}

func (s *eventSink) byType(eventType enums.OutboxEventType) []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedEvent
	for _, e := range s.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// stubLocker lets service tests script lock contention.
type stubLocker struct {
	mu       sync.Mutex
	held     bool
	acquires int
	releases int
}

func (l *stubLocker) Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.releases++
	}, true, nil
}
