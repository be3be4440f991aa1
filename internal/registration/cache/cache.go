// Package cache adds a read-through cache in front of a registration store.
//
// Records never change after insert, so entries are never invalidated; they
// only expire. Concurrent misses for the same id are coalesced into one store
// read. The cache is an optimisation only: any backend failure falls through
// to the store.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"formintake/internal/registration/models"
	id "formintake/pkg/domain"
	"formintake/pkg/platform/circuit"
)

const keyPrefix = "registration:"

// sharedReadTimeout bounds a coalesced store read, which no longer inherits
// any caller's deadline.
const sharedReadTimeout = 5 * time.Second

// Store is the wrapped registration store.
type Store interface {
	Insert(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error)
	Ping(ctx context.Context) error
}

// Backend holds cached records. Get reports a miss with ok=false and nil error.
type Backend interface {
	Get(ctx context.Context, key string) (reg *models.Registration, ok bool, err error)
	Set(ctx context.Context, key string, reg *models.Registration, ttl time.Duration) error
}

// CachedStore implements Store.
type CachedStore struct {
	next    Store
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*CachedStore)

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedStore) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *CachedStore) {
		c.breaker = b
	}
}

func New(next Store, backend Backend, ttl time.Duration, opts ...Option) *CachedStore {
	c := &CachedStore{
		next:    next,
		backend: backend,
		ttl:     ttl,
		breaker: circuit.New("cache", circuit.WithFailureThreshold(5), circuit.WithCooldown(10*time.Second)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(regID id.RegistrationID) string {
	return keyPrefix + regID.String()
}

func (c *CachedStore) Insert(ctx context.Context, reg *models.Registration) error {
	if err := c.next.Insert(ctx, reg); err != nil {
		return err
	}
	c.set(ctx, reg)
	return nil
}

func (c *CachedStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	key := cacheKey(regID)
	if c.breaker.Allow() {
		reg, ok, err := c.backend.Get(ctx, key)
		if err != nil {
			c.recordFailure(ctx, "get", err)
		} else {
			c.breaker.RecordSuccess()
			if ok {
				return reg, nil
			}
		}
	}

	// The shared read must outlive any single caller: one reader giving up
	// must not fail the others waiting on the same id.
	ch := c.group.DoChan(key, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		reg, err := c.next.FindByID(readCtx, regID)
		if err != nil {
			return nil, err
		}
		c.set(readCtx, reg)
		return reg, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Registration).Clone(), nil
	}
}

func (c *CachedStore) ExistsByReference(ctx context.Context, code models.ReferenceCode) (bool, error) {
	return c.next.ExistsByReference(ctx, code)
}

func (c *CachedStore) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *CachedStore) set(ctx context.Context, reg *models.Registration) {
	if !c.breaker.Allow() {
		return
	}
	if err := c.backend.Set(ctx, cacheKey(reg.ID), reg, c.ttl); err != nil {
		c.recordFailure(ctx, "set", err)
		return
	}
	c.breaker.RecordSuccess()
}

func (c *CachedStore) recordFailure(ctx context.Context, op string, err error) {
	c.logger.WarnContext(ctx, "registration cache unavailable", "op", op, "error", err)
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "registration cache circuit opened")
	}
}
