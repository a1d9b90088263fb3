package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client, ttl), mr
}

func TestSessionLoadUnknownIsInitial(t *testing.T) {
	repo, _ := newTestRepo(t, time.Hour)

	st, err := repo.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", st.ID)
	assert.True(t, st.Initial())
	assert.Empty(t, st.Seen)
	assert.Zero(t, st.Depth)
}

func TestSessionAppendAccumulates(t *testing.T) {
	repo, mr := newTestRepo(t, 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s1", []string{"shop:a", "shop:b"}, 1))
	require.NoError(t, repo.Append(ctx, "s1", []string{"shop:b", "shop:c"}, 2))

	st, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Pages)
	assert.Equal(t, 2, st.Depth)
	assert.Len(t, st.Seen, 3)
	for _, id := range []string{"shop:a", "shop:b", "shop:c"} {
		assert.True(t, st.Seen.Has(id), id)
	}

	members, err := mr.SMembers("reco:session:s1:seen")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shop:a", "shop:b", "shop:c"}, members)
	assert.Equal(t, "2", mr.HGet("reco:session:s1:meta", "pages"))
	assert.Equal(t, 30*time.Minute, mr.TTL("reco:session:s1:seen"))
	assert.Equal(t, 30*time.Minute, mr.TTL("reco:session:s1:meta"))
}

func TestSessionAppendEmptyPageCountsWithoutSeenSet(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s2", nil, 3))

	assert.False(t, mr.Exists("reco:session:s2:seen"))
	st, err := repo.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pages)
	assert.Equal(t, 3, st.Depth)
}

func TestSessionExpiresAfterIdleTTL(t *testing.T) {
	repo, mr := newTestRepo(t, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s3", []string{"shop:a"}, 1))
	mr.FastForward(8 * time.Minute)
	require.NoError(t, repo.Append(ctx, "s3", []string{"shop:b"}, 1))

	mr.FastForward(8 * time.Minute)
	st, err := repo.Load(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Pages, "each page refreshes the TTL")

	mr.FastForward(11 * time.Minute)
	st, err = repo.Load(ctx, "s3")
	require.NoError(t, err)
	assert.True(t, st.Initial())
	assert.Empty(t, st.Seen)
}

func TestSessionEndDeletesBothKeys(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s4", []string{"shop:a"}, 1))
	require.NoError(t, repo.End(ctx, "s4"))

	assert.False(t, mr.Exists("reco:session:s4:seen"))
	assert.False(t, mr.Exists("reco:session:s4:meta"))
	require.NoError(t, repo.End(ctx, "s4"), "ending twice is harmless")
}

func TestSessionErrorsWhenRedisIsDown(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	mr.Close()

	_, err := repo.Load(context.Background(), "s5")
	assert.Error(t, err)
	assert.Error(t, repo.Append(context.Background(), "s5", []string{"shop:a"}, 1))
}
