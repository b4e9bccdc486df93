package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
)

const (
	// PrefixAggregate is the prefix for per-center aggregate keys.
	PrefixAggregate = "aggregate:"

	// PrefixGeneration is the prefix for per-(track, center) generation keys.
	PrefixGeneration = "aggregate-gen:"

	// TTLAggregate is the default TTL of a cached aggregate.
	TTLAggregate = 10 * time.Minute

	// unknownCenterSegment stands for the unknown-center bucket in keys.
	unknownCenterSegment = center.UnknownID
)

// AggregateCache implements attainment.AggregateCache using Redis.
type AggregateCache struct {
	cache *Cache
}

// NewAggregateCache creates a new AggregateCache.
func NewAggregateCache(cache *Cache) *AggregateCache {
	return &AggregateCache{cache: cache}
}

var _ attainment.AggregateCache = (*AggregateCache)(nil)

// Get returns the cached aggregate and the generation of its (track, center).
// A miss is (zero, gen, false, nil).
func (a *AggregateCache) Get(ctx context.Context, key attainment.CacheKey) (attainment.AggregateCounts, attainment.Generation, bool, error) {
	var agg attainment.AggregateCounts
	gen, err := a.cache.GetVersioned(ctx, AggregateKey(key), GenerationKey(key.Track, key.CenterID), &agg)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return attainment.AggregateCounts{}, attainment.Generation(gen), false, nil
		}
		return attainment.AggregateCounts{}, attainment.NoGeneration, false, err
	}
	return agg, attainment.Generation(gen), true, nil
}

// Set stores an aggregate if no invalidation touched its (track, center)
// since gen was read. A non-positive ttl falls back to TTLAggregate.
func (a *AggregateCache) Set(ctx context.Context, key attainment.CacheKey, value attainment.AggregateCounts, gen attainment.Generation, ttl time.Duration) error {
	if gen == attainment.NoGeneration {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLAggregate
	}
	_, err := a.cache.SetIfVersion(ctx, AggregateKey(key), GenerationKey(key.Track, key.CenterID), int64(gen), value, ttl)
	return err
}

// Invalidate bumps the generation of each key's (track, center) and drops the keys.
func (a *AggregateCache) Invalidate(ctx context.Context, keys ...attainment.CacheKey) error {
	if len(keys) == 0 {
		return nil
	}
	gens := make([]string, 0, len(keys))
	raw := make([]string, 0, len(keys))
	for _, k := range keys {
		gens = append(gens, GenerationKey(k.Track, k.CenterID))
		raw = append(raw, AggregateKey(k))
	}
	return a.cache.BumpVersions(ctx, gens, raw...)
}

// InvalidateCenter drops every cached aggregate of a center, all tracks and years.
// Generations move first so fills already in flight are discarded.
func (a *AggregateCache) InvalidateCenter(ctx context.Context, centerID string) error {
	tracks := session.Tracks()
	gens := make([]string, 0, len(tracks))
	for _, track := range tracks {
		gens = append(gens, GenerationKey(track, centerID))
	}
	if err := a.cache.BumpVersions(ctx, gens); err != nil {
		return err
	}
	for _, track := range tracks {
		if err := a.cache.DeleteByPattern(ctx, CenterPattern(track, centerID)); err != nil {
			return err
		}
	}
	return nil
}

// AggregateKey formats "aggregate:{track}:{center}:{year}".
func AggregateKey(key attainment.CacheKey) string {
	return PrefixAggregate + string(key.Track) + ":" + centerSegment(key.CenterID) + ":" + strconv.Itoa(key.Year)
}

// GenerationKey formats "aggregate-gen:{track}:{center}".
func GenerationKey(track session.Track, centerID string) string {
	return PrefixGeneration + string(track) + ":" + centerSegment(centerID)
}

// CenterPattern is the SCAN pattern matching every year of a (track, center).
func CenterPattern(track session.Track, centerID string) string {
	return PrefixAggregate + string(track) + ":" + escapeGlob(centerSegment(centerID)) + ":*"
}

func centerSegment(centerID string) string {
	if centerID == "" {
		return unknownCenterSegment
	}
	return centerID
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
