package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomszi/quotefeed/internal/model"
)

func tick(id string, price float64, ts int64) model.MarketTick {
	return model.MarketTick{InstrumentID: id, Last: price, TS: ts}
}

func TestGetOrFetchCachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(5*time.Second, WithClock(func() time.Time { return now }))

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (model.MarketTick, error) {
		fetches.Add(1)
		return tick("BTC", 43000, now.UnixMilli()), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrFetch(context.Background(), "BTC", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch failed: %v", err)
		}
		if got.Last != 43000 {
			t.Errorf("Last = %f, want 43000", got.Last)
		}
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestStalenessJudgedAtReadTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(5*time.Second, WithClock(func() time.Time { return now }))

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (model.MarketTick, error) {
		fetches.Add(1)
		return tick("BTC", 43000, now.UnixMilli()), nil
	}

	if _, err := c.GetOrFetch(context.Background(), "BTC", fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	// Advance past the TTL; the entry is still stored but no longer served.
	now = now.Add(6 * time.Second)

	if _, ok := c.Get("BTC"); ok {
		t.Error("Get returned stale entry")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (no active sweeping)", c.Len())
	}

	if _, err := c.GetOrFetch(context.Background(), "BTC", fetch); err != nil {
		t.Fatalf("GetOrFetch after expiry failed: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestCoalescing(t *testing.T) {
	c := New(5 * time.Second)

	var fetches atomic.Int32
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (model.MarketTick, error) {
		fetches.Add(1)
		<-gate // hold the fetch open so all callers pile up
		return tick("BTC", 43000, time.Now().UnixMilli()), nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]model.MarketTick, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(context.Background(), "BTC", fetch)
		}(i)
	}

	// Give the goroutines time to reach the singleflight barrier.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1 (coalesced)", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error: %v", i, errs[i])
		}
		if results[i].Last != 43000 {
			t.Errorf("caller %d Last = %f, want 43000", i, results[i].Last)
		}
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c := New(5 * time.Second)

	btcGate := make(chan struct{})
	slowFetch := func(ctx context.Context) (model.MarketTick, error) {
		<-btcGate
		return tick("BTC", 43000, 1), nil
	}
	fastFetch := func(ctx context.Context) (model.MarketTick, error) {
		return tick("ETH", 2300, 1), nil
	}

	done := make(chan struct{})
	go func() {
		c.GetOrFetch(context.Background(), "BTC", slowFetch)
		close(done)
	}()

	// An in-flight BTC fetch must not block ETH.
	got, err := c.GetOrFetch(context.Background(), "ETH", fastFetch)
	if err != nil {
		t.Fatalf("GetOrFetch(ETH) failed: %v", err)
	}
	if got.Last != 2300 {
		t.Errorf("ETH Last = %f, want 2300", got.Last)
	}

	close(btcGate)
	<-done
}

func TestFetchErrorNotCached(t *testing.T) {
	c := New(5 * time.Second)

	var fetches atomic.Int32
	fetch := func(ctx context.Context) (model.MarketTick, error) {
		fetches.Add(1)
		return model.MarketTick{}, errors.New("upstream down")
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetOrFetch(context.Background(), "BTC", fetch); err == nil {
			t.Fatal("GetOrFetch returned nil error")
		}
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2 (errors are not cached)", got)
	}
}

func TestMonotonicTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(time.Nanosecond, WithClock(func() time.Time { now = now.Add(time.Second); return now }))

	first := func(ctx context.Context) (model.MarketTick, error) {
		return tick("BTC", 43000, 1000), nil
	}
	// A provider reporting an older timestamp must not move the entry back.
	regressed := func(ctx context.Context) (model.MarketTick, error) {
		return tick("BTC", 43100, 500), nil
	}

	if _, err := c.GetOrFetch(context.Background(), "BTC", first); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetOrFetch(context.Background(), "BTC", regressed)
	if err != nil {
		t.Fatal(err)
	}

	if got.TS != 1000 {
		t.Errorf("TS = %d, want clamped to 1000", got.TS)
	}
	if got.Last != 43100 {
		t.Errorf("Last = %f, want 43100 (tick replaced, not merged)", got.Last)
	}
}
