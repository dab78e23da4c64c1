package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKeyFormatAndTTL(t *testing.T) {
	wh := uuid.MustParse("7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f")
	cases := []struct {
		key Key
		str string
		ttl time.Duration
	}{
		{NewKey(Customers, wh, ViewList), "customers:7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f:list", 5 * time.Minute},
		{NewKey(Customers, wh, ViewSearch, "Ram"), "customers:7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f:search:ram", 2 * time.Minute},
		{NewKey(Payments, wh, ViewToday), "payments:7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f:today", time.Minute},
		{NewKey(StorageLots, wh, ViewAvailable, "10"), "storage_lots:7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f:available:10", time.Minute},
		{GlobalKey(Products, ViewList), "products:global:list", 10 * time.Minute},
		{NewKey(Products, uuid.Nil, ViewSearch, "a:b"), "products:global:search:a_b", 2 * time.Minute},
		{GlobalKey(Warehouses, ViewDefault), "warehouses:global:default", 10 * time.Minute},
		{NewKey(Dashboard, wh, "unknown"), "dashboard:7c1d6f5e-7f1a-4c55-9c5e-1d2b3c4d5e6f:unknown", DefaultTTL},
	}
	for _, tc := range cases {
		if got := tc.key.String(); got != tc.str {
			t.Fatalf("expected key %s, got %s", tc.str, got)
		}
		if got := tc.key.TTL(); got != tc.ttl {
			t.Fatalf("%s: expected ttl %s, got %s", tc.str, tc.ttl, got)
		}
	}
}

func TestInvalidationTargets(t *testing.T) {
	cases := []struct {
		op   Op
		want []Entity
	}{
		{OpInflowCreated, []Entity{Transactions, StorageLots, Products, Customers, Payments, Dashboard}},
		{OpPaymentCreated, []Entity{Payments, Customers, Transactions, Dashboard}},
		{OpCustomerChanged, []Entity{Customers}},
		{OpTransactionStatus, []Entity{Transactions, StorageLots, Products, Customers, Payments, Dashboard}},
		{OpPaymentStatus, []Entity{Payments, Customers, Transactions, Dashboard}},
	}
	for _, tc := range cases {
		got := Targets(tc.op)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.op, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: expected %v, got %v", tc.op, tc.want, got)
			}
		}
	}

	wh := uuid.New()
	prefixes := Prefixes(OpProductChanged, wh)
	if len(prefixes) != 2 || prefixes[1] != "products:global:" {
		t.Fatalf("expected scoped and global product prefixes, got %v", prefixes)
	}
}

func TestInvalidateDropsOnlyAffectedWarehouse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store)
	whA, whB := uuid.New(), uuid.New()

	for _, k := range []Key{
		NewKey(Customers, whA, ViewList),
		NewKey(Customers, whA, ViewDetail, "1"),
		NewKey(Customers, whB, ViewList),
		NewKey(Payments, whA, ViewList),
	} {
		if err := store.Set(ctx, k.String(), []string{"x"}, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	var notified []string
	c.OnInvalidate(func(op Op, wh uuid.UUID, prefixes []string) {
		notified = prefixes
	})
	c.Invalidate(ctx, OpCustomerChanged, whA)

	if store.Len() != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", store.Len())
	}
	var out []string
	if ok, _ := store.Get(ctx, NewKey(Customers, whB, ViewList).String(), &out); !ok {
		t.Fatalf("other warehouse must keep its cache")
	}
	if len(notified) != 1 || notified[0] != Prefix(Customers, whA.String()) {
		t.Fatalf("unexpected notification %v", notified)
	}
}

func TestQueryLoadOutlivesCancelledCaller(t *testing.T) {
	c := New(NewMemoryStore())
	key := NewKey(Customers, uuid.New(), ViewList)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var loadErr error
	load := func(ctx context.Context) ([]string, error) {
		once.Do(func() { close(started) })
		<-release
		loadErr = ctx.Err()
		return []string{"Ravi"}, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Query(first, c, key, load)
		firstErr <- err
	}()
	<-started

	type result struct {
		got []string
		err error
	}
	second := make(chan result, 1)
	go func() {
		got, err := Query(context.Background(), c, key, load)
		second <- result{got, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to see context.Canceled, got %v", err)
	}
	close(release)

	r := <-second
	if r.err != nil || len(r.got) != 1 || r.got[0] != "Ravi" {
		t.Fatalf("expected the waiting caller to get the load result, got %v %v", r.got, r.err)
	}
	if loadErr != nil {
		t.Fatalf("shared load must not see the first caller's cancellation, got %v", loadErr)
	}
}

func TestQueryCachesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())
	key := NewKey(StorageLots, uuid.New(), ViewList)

	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"A1", "A2"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Query(ctx, c, key, load)
			if err != nil || len(got) != 2 {
				t.Errorf("Query returned %v, %v", got, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n < 1 || n > 5 {
		t.Fatalf("unexpected load count %d", n)
	}
	before := atomic.LoadInt32(&calls)
	if _, err := Query(ctx, c, key, load); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if atomic.LoadInt32(&calls) != before {
		t.Fatalf("expected cached result to skip load")
	}
}

func TestQueryDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())
	key := NewKey(Transactions, uuid.New(), ViewList)
	boom := errors.New("boom")

	if _, err := Query(ctx, c, key, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	got, err := Query(ctx, c, key, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("expected fresh load after error, got %d %v", got, err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", 1, time.Minute)
	var v int
	if ok, _ := s.Get(ctx, "k", &v); !ok || v != 1 {
		t.Fatalf("expected hit")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := s.Get(ctx, "k", &v); ok {
		t.Fatalf("expected expiry")
	}
}
