// Package lock serialises workflow writes on the same storage lot or customer.
// Row locks inside the database transaction remain the source of truth; these
// locks keep concurrent requests from queueing on those rows for the whole
// write timeout.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go-warehouse-ws/pkg/apperror"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

var ErrBusy = apperror.Conflict("another write on the same record is in progress, try again")

func LotKey(id uuid.UUID) string      { return "lock:lot:" + id.String() }
func CustomerKey(id uuid.UUID) string { return "lock:customer:" + id.String() }

// Locker acquires all keys or none. The returned release func is never nil on
// success.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{client: redislock.New(rdb), ttl: defaultTTL}
}

func (l *redisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalise(keys)
	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(context.Background())
		}
	}
	opts := &redislock.Options{RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond)}
	for _, k := range keys {
		lk, err := l.client.Obtain(ctx, k, l.ttl, opts)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, ErrBusy
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, apperror.Wrap(apperror.KindTimeout, "waiting for record lock", err)
			}
			return nil, apperror.Wrap(apperror.KindTransport, "obtain lock", err)
		}
		held = append(held, lk)
	}
	return release, nil
}

// localLocker is the in-process fallback when Redis is not configured.
type localLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]chan struct{})}
}

func (l *localLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *localLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalise(keys)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, k := range keys {
		ch := l.slot(k)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperror.Wrap(apperror.KindTimeout, "waiting for record lock", ctx.Err())
			}
			return nil, ErrBusy
		}
	}
	return release, nil
}

// normalise sorts and dedups keys so that every caller locks in the same order.
func normalise(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if k == "" || (i > 0 && k == out[i-1]) {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
