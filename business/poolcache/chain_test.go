package poolcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"furusatoReco/business/candidate"
	"furusatoReco/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []candidate.Request
	pool    domain.CandidatePool
	err     error
	onFetch func()
}

func (f *fakeFetcher) Fetch(ctx context.Context, req candidate.Request) (domain.CandidatePool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return domain.CandidatePool{}, f.err
	}
	return f.pool.Without(req.Exclude), nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// persistentFake stands in for the database tier. It refuses writes on a
// cancelled context the same way a real driver would.
type persistentFake struct {
	*MemoryTier
	getErr error
}

func (p *persistentFake) Name() string { return "persistent" }

func (p *persistentFake) Get(ctx context.Context, key string) (domain.CandidatePool, bool, error) {
	if p.getErr != nil {
		return domain.CandidatePool{}, false, p.getErr
	}
	return p.MemoryTier.Get(ctx, key)
}

func (p *persistentFake) Put(ctx context.Context, key string, pool domain.CandidatePool, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.MemoryTier.Put(ctx, key, pool, ttl)
}

type fixture struct {
	fetcher    *fakeFetcher
	ephemeral  *MemoryTier
	persistent *persistentFake
	chain      *Chain
	now        time.Time
}

func newFixture() *fixture {
	f := &fixture{
		fetcher: &fakeFetcher{pool: domain.CandidatePool{Items: []domain.Product{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		}}},
		ephemeral:  NewMemoryTier(0),
		persistent: &persistentFake{MemoryTier: NewMemoryTier(0)},
		now:        time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.ephemeral.now = clock
	f.persistent.now = clock
	f.chain = NewChain(f.fetcher, 5000,
		EphemeralLevel(f.ephemeral, 15*time.Minute),
		PersistentLevel(f.persistent, 7*24*time.Hour),
	)
	return f
}

func request() domain.PoolRequest {
	return domain.PoolRequest{UserID: "u1", Categories: []string{"米", "肉"}, Ceiling: 12000}
}

func TestLoadMissFetchesOnceThenHitsEphemeral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pool, src, err := f.chain.Load(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, SourceCatalog, src)
	assert.Equal(t, []string{"a", "b", "c"}, pool.IDs())

	pool2, src, err := f.chain.Load(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", src)
	assert.Equal(t, pool.IDs(), pool2.IDs())
	assert.Equal(t, 1, f.fetcher.count())

	// the fetcher sees the bucket ceiling, not the raw one
	assert.Equal(t, 15000, f.fetcher.calls[0].CeilingHint)
}

func TestLoadPersistentHitBackfillsEphemeral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := request()

	require.NoError(t, f.persistent.Put(ctx, PersistentKey(req, 15000), f.fetcher.pool, time.Hour))

	_, src, err := f.chain.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "persistent", src)
	assert.Zero(t, f.fetcher.count())

	_, ok, _ := f.ephemeral.Get(ctx, EphemeralKey(req, 15000))
	assert.True(t, ok)
}

func TestLoadPersistentHitIsFilteredByExclusions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := request()
	require.NoError(t, f.persistent.Put(ctx, PersistentKey(req, 15000), f.fetcher.pool, time.Hour))

	req.Exclude = domain.NewIDSet("b")
	pool, src, err := f.chain.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "persistent", src)
	assert.Equal(t, []string{"a", "c"}, pool.IDs())
}

func TestLoadWithExclusionsSkipsPersistentWrite(t *testing.T) {
	f := newFixture()
	req := request()
	req.Exclude = domain.NewIDSet("a")

	_, _, err := f.chain.Load(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, f.ephemeral.Len())
	assert.Zero(t, f.persistent.Len())
}

func TestLoadPartialPoolStaysEphemeral(t *testing.T) {
	f := newFixture()
	f.fetcher.pool.FailedCategories = []string{"肉"}

	_, _, err := f.chain.Load(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 1, f.ephemeral.Len())
	assert.Zero(t, f.persistent.Len())
}

func TestLoadEphemeralExpiresLazily(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := request()
	req.Exclude = domain.NewIDSet("z")

	_, _, err := f.chain.Load(ctx, req)
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	_, src, err := f.chain.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SourceCatalog, src)
	assert.Equal(t, 2, f.fetcher.count())
}

func TestLoadPersistentSurvivesEphemeralExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _, err := f.chain.Load(ctx, request())
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, src, err := f.chain.Load(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "persistent", src)

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, src, err = f.chain.Load(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, SourceCatalog, src)
}

func TestLoadWritesEvenWhenCallerCancelsDuringFetch(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.onFetch = cancel

	_, _, err := f.chain.Load(ctx, request())
	require.NoError(t, err)

	assert.Equal(t, 1, f.persistent.Len())
	assert.Equal(t, 1, f.ephemeral.Len())
}

type cancellingCatalog struct {
	items  []domain.Product
	cancel context.CancelFunc
}

func (c *cancellingCatalog) Search(ctx context.Context, q candidate.Query) ([]domain.Product, error) {
	c.cancel()
	return c.items, nil
}

func TestLoadThroughFetcherCachesResultsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	catalog := &cancellingCatalog{
		items:  []domain.Product{{ID: "shop:1"}, {ID: "shop:2"}},
		cancel: cancel,
	}
	ephemeral := NewMemoryTier(0)
	persistent := &persistentFake{MemoryTier: NewMemoryTier(0)}
	chain := NewChain(candidate.NewFetcher(catalog, candidate.DefaultConfig()), 5000,
		EphemeralLevel(ephemeral, 15*time.Minute),
		PersistentLevel(persistent, 7*24*time.Hour),
	)

	pool, src, err := chain.Load(ctx, domain.PoolRequest{Categories: []string{"米"}, Ceiling: 12000})
	require.NoError(t, err)
	assert.Equal(t, SourceCatalog, src)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, 1, ephemeral.Len())
	assert.Equal(t, 1, persistent.Len())
}

func TestLoadTierErrorIsAMiss(t *testing.T) {
	f := newFixture()
	f.persistent.getErr = errors.New("connection refused")

	_, src, err := f.chain.Load(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, SourceCatalog, src)
}

func TestLoadFetchErrorIsNotCached(t *testing.T) {
	f := newFixture()
	f.fetcher.err = domain.ErrNoCandidates

	_, _, err := f.chain.Load(context.Background(), request())
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
	assert.Zero(t, f.ephemeral.Len())
	assert.Zero(t, f.persistent.Len())
}

func TestKeys(t *testing.T) {
	a := domain.PoolRequest{UserID: "u1", Categories: []string{"米", "肉"}}
	b := domain.PoolRequest{UserID: "u2", Categories: []string{"肉", "米"}, Exclude: domain.NewIDSet("x")}

	assert.Equal(t, PersistentKey(a, 10000), PersistentKey(b, 10000))
	assert.NotEqual(t, PersistentKey(a, 10000), PersistentKey(a, 15000))
	assert.NotEqual(t, PersistentKey(a, 10000), PersistentKey(domain.PoolRequest{Categories: a.Categories, Page: 2}, 10000))

	a2 := a
	a2.Exclude = domain.NewIDSet("x")
	assert.NotEqual(t, EphemeralKey(a, 10000), EphemeralKey(a2, 10000))
	assert.NotEqual(t, EphemeralKey(a2, 10000), EphemeralKey(b, 10000))
}

func TestPriceBucket(t *testing.T) {
	assert.Equal(t, 0, PriceBucket(0, 5000))
	assert.Equal(t, 5000, PriceBucket(1, 5000))
	assert.Equal(t, 10000, PriceBucket(10000, 5000))
	assert.Equal(t, 15000, PriceBucket(10001, 5000))
	assert.Equal(t, 12345, PriceBucket(12345, 0))
}
