package poolcache

import (
	"context"
	"fmt"
	"time"

	"furusatoReco/business/candidate"
	"furusatoReco/domain"
	"furusatoReco/pkg/logger"
)

// Tier is one storage layer of the pool cache. A missing or expired entry
// is reported as (zero, false, nil).
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) (domain.CandidatePool, bool, error)
	Put(ctx context.Context, key string, pool domain.CandidatePool, ttl time.Duration) error
}

// KeyFunc derives a tier key from a request and its price bucket.
type KeyFunc func(req domain.PoolRequest, bucket int) string

// Level places a tier in the chain.
//
// A Shared level is keyed without the request's exclusions, so it only ever
// stores exclusion-free, complete pools and its hits are filtered by the
// request's exclusions on the way out.
type Level struct {
	Tier   Tier
	TTL    time.Duration
	Key    KeyFunc
	Shared bool
}

func EphemeralLevel(t Tier, ttl time.Duration) Level {
	return Level{Tier: t, TTL: ttl, Key: EphemeralKey}
}

func PersistentLevel(t Tier, ttl time.Duration) Level {
	return Level{Tier: t, TTL: ttl, Key: PersistentKey, Shared: true}
}

type PoolFetcher interface {
	Fetch(ctx context.Context, req candidate.Request) (domain.CandidatePool, error)
}

const SourceCatalog = "catalog"

// Chain looks a pool up tier by tier, falling through to the fetcher.
type Chain struct {
	levels      []Level
	fetcher     PoolFetcher
	priceBucket int
}

func NewChain(fetcher PoolFetcher, priceBucket int, levels ...Level) *Chain {
	return &Chain{
		levels:      levels,
		fetcher:     fetcher,
		priceBucket: priceBucket,
	}
}

// Load returns the pool for req and the name of whatever served it.
// Lower-tier hits are copied into every tier above; fresh fetches are
// written to every eligible tier. Writes run on a context detached from the
// caller so an abandoned request still leaves a warm cache.
func (c *Chain) Load(ctx context.Context, req domain.PoolRequest) (domain.CandidatePool, string, error) {
	if err := ctx.Err(); err != nil {
		return domain.CandidatePool{}, "", fmt.Errorf("context error: %w", err)
	}

	bucket := PriceBucket(req.Ceiling, c.priceBucket)

	for i, lvl := range c.levels {
		name := lvl.Tier.Name()
		pool, ok, err := lvl.Tier.Get(ctx, lvl.Key(req, bucket))
		if err != nil {
			lookupsTotal.WithLabelValues(name, "error").Inc()
			logger.Warn("pool cache tier read failed", "tier", name, "error", err)
			continue
		}
		if !ok {
			lookupsTotal.WithLabelValues(name, "miss").Inc()
			continue
		}
		lookupsTotal.WithLabelValues(name, "hit").Inc()

		if lvl.Shared {
			pool = pool.Without(req.Exclude)
		}
		c.store(ctx, c.levels[:i], req, bucket, pool)
		return pool, name, nil
	}

	pool, err := c.fetcher.Fetch(ctx, candidate.Request{
		Categories:  req.Categories,
		Exclude:     req.Exclude,
		CeilingHint: bucket,
		Page:        req.Page,
	})
	if err != nil {
		return domain.CandidatePool{}, "", fmt.Errorf("fetch pool: %w", err)
	}

	c.store(ctx, c.levels, req, bucket, pool)
	return pool, SourceCatalog, nil
}

func (c *Chain) store(ctx context.Context, levels []Level, req domain.PoolRequest, bucket int, pool domain.CandidatePool) {
	if len(levels) == 0 {
		return
	}
	wctx := context.WithoutCancel(ctx)

	for _, lvl := range levels {
		if lvl.Shared && (len(req.Exclude) > 0 || len(pool.FailedCategories) > 0) {
			continue
		}
		name := lvl.Tier.Name()
		if err := lvl.Tier.Put(wctx, lvl.Key(req, bucket), pool, lvl.TTL); err != nil {
			writesTotal.WithLabelValues(name, "error").Inc()
			logger.Warn("pool cache tier write failed", "tier", name, "error", err)
			continue
		}
		writesTotal.WithLabelValues(name, "ok").Inc()
	}
}

// PriceBucket rounds a ceiling up to the next multiple of size. A zero or
// negative ceiling stays zero.
func PriceBucket(ceiling, size int) int {
	if ceiling <= 0 {
		return 0
	}
	if size <= 0 {
		return ceiling
	}
	return ((ceiling + size - 1) / size) * size
}
