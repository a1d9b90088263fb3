package poolcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"furusatoReco/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTierExpiry(t *testing.T) {
	m := NewMemoryTier(0)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", domain.CandidatePool{Items: []domain.Product{{ID: "a"}}}, time.Minute))

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemoryTierEvictsClosestToExpiryWhenFull(t *testing.T) {
	m := NewMemoryTier(2)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "short", domain.CandidatePool{}, time.Minute))
	require.NoError(t, m.Put(ctx, "long", domain.CandidatePool{}, time.Hour))
	require.NoError(t, m.Put(ctx, "new", domain.CandidatePool{}, time.Hour))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryTierConcurrentAccess(t *testing.T) {
	m := NewMemoryTier(64)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i+j)%80)
				_ = m.Put(ctx, key, domain.CandidatePool{}, time.Minute)
				_, _, _ = m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 64)
}
