package redis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/pkg/circuitbreaker"
)

// GuardedAggregateCache puts a circuit breaker in front of an aggregate cache.
// While the circuit is open reads are plain misses and writes are skipped, so
// the engine falls back to the store without waiting on Redis timeouts.
//
// A failed invalidation may leave a stale entry behind. From that moment the
// guard distrusts the cache for one TTL: every read is a miss and no fill is
// stored, so any entry written before the failure has expired by the time
// reads resume.
type GuardedAggregateCache struct {
	inner   attainment.AggregateCache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	now     func() time.Time

	// untrustedUntil is a UnixNano deadline; zero when the cache is trusted.
	untrustedUntil atomic.Int64
}

// NewGuardedAggregateCache wraps inner with breaker. ttl is the longest
// lifetime of a cached entry; non-positive means TTLAggregate.
func NewGuardedAggregateCache(inner attainment.AggregateCache, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration) *GuardedAggregateCache {
	if ttl <= 0 {
		ttl = TTLAggregate
	}
	return &GuardedAggregateCache{inner: inner, breaker: breaker, ttl: ttl, now: time.Now}
}

var _ attainment.AggregateCache = (*GuardedAggregateCache)(nil)

// Trusted reports whether reads currently go to the cache.
func (g *GuardedAggregateCache) Trusted() bool {
	return g.now().UnixNano() >= g.untrustedUntil.Load()
}

func (g *GuardedAggregateCache) distrust() {
	until := g.now().Add(g.ttl).UnixNano()
	for {
		cur := g.untrustedUntil.Load()
		if cur >= until || g.untrustedUntil.CompareAndSwap(cur, until) {
			return
		}
	}
}

// Get implements attainment.AggregateCache.
func (g *GuardedAggregateCache) Get(ctx context.Context, key attainment.CacheKey) (attainment.AggregateCounts, attainment.Generation, bool, error) {
	if !g.Trusted() {
		return attainment.AggregateCounts{}, attainment.NoGeneration, false, nil
	}

	var (
		agg attainment.AggregateCounts
		gen = attainment.NoGeneration
		ok  bool
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		agg, gen, ok, err = g.inner.Get(ctx, key)
		return err
	})
	if circuitbreaker.IsRejected(err) {
		return attainment.AggregateCounts{}, attainment.NoGeneration, false, nil
	}
	if err != nil {
		return attainment.AggregateCounts{}, attainment.NoGeneration, false, err
	}
	return agg, gen, ok, nil
}

// Set implements attainment.AggregateCache.
func (g *GuardedAggregateCache) Set(ctx context.Context, key attainment.CacheKey, value attainment.AggregateCounts, gen attainment.Generation, ttl time.Duration) error {
	if gen == attainment.NoGeneration || !g.Trusted() {
		return nil
	}
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, gen, ttl)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// Invalidate implements attainment.AggregateCache.
func (g *GuardedAggregateCache) Invalidate(ctx context.Context, keys ...attainment.CacheKey) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Invalidate(ctx, keys...)
	})
	if err != nil {
		g.distrust()
	}
	return err
}

// InvalidateCenter implements attainment.AggregateCache.
func (g *GuardedAggregateCache) InvalidateCenter(ctx context.Context, centerID string) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.InvalidateCenter(ctx, centerID)
	})
	if err != nil {
		g.distrust()
	}
	return err
}
