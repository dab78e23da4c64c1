package cache

import (
	"context"
	"sync"
	"time"

	"go-warehouse-ws/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const moduleName = "cache"

// loadTimeout bounds a shared load once it no longer follows its first caller.
const loadTimeout = 30 * time.Second

// InvalidationListener is told which prefixes were dropped after a write.
type InvalidationListener func(op Op, warehouseID uuid.UUID, prefixes []string)

type Cache struct {
	store     Store
	group     singleflight.Group
	log       *logrus.Logger
	mu        sync.RWMutex
	listeners []InvalidationListener
}

func New(store Store) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{store: store, log: logger.Get()}
}

// OnInvalidate registers fn to run after every invalidation.
func (c *Cache) OnInvalidate(fn InvalidationListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Invalidate drops every cached view op makes stale for the warehouse. Store
// failures are logged; a stale entry expires with its TTL anyway.
func (c *Cache) Invalidate(ctx context.Context, op Op, warehouseID uuid.UUID) {
	if c == nil {
		return
	}
	prefixes := Prefixes(op, warehouseID)
	for _, p := range prefixes {
		if err := c.store.DeletePrefix(ctx, p); err != nil {
			logger.LogError(c.log, moduleName, "Invalidate", "delete prefix", p, err)
		}
	}

	c.mu.RLock()
	listeners := append([]InvalidationListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(op, warehouseID, prefixes)
	}
}

// Query serves key from cache or runs load once for all concurrent callers
// asking for the same key, caching the result for the key's TTL. Errors are
// never cached.
func Query[T any](ctx context.Context, c *Cache, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	k := key.String()

	var cached T
	if ok, err := c.store.Get(ctx, k, &cached); err != nil {
		logger.LogError(c.log, moduleName, "Query", "read cache", k, err)
	} else if ok {
		return cached, nil
	}

	// The load is shared by every waiter on k, so it runs detached from the
	// first caller's cancellation. Each caller still stops waiting on its own ctx.
	ch := c.group.DoChan(k, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		res, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(loadCtx, k, res, key.TTL()); err != nil {
			logger.LogError(c.log, moduleName, "Query", "write cache", k, err)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}
