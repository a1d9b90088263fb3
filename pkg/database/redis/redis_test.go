package redis

import (
	"context"
	"testing"

	"furusatoReco/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(mr *miniredis.Miniredis) *config.Config {
	return &config.Config{Redis: config.RedisConfig{
		RedisHost:    mr.Host(),
		RedisPort:    mr.Port(),
		PoolSize:     4,
		MinIdleConns: 1,
	}}
}

func TestNewRedisClientAppliesPoolAndCredentials(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireUserAuth("reco", "s3cret")

	cfg := redisConfig(mr)
	cfg.Redis.RedisUsername = "reco"
	cfg.Redis.RedisPassword = "s3cret"

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer CloseRedisClient(client)

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, 1, client.Options().MinIdleConns)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisClientRejectsBadCredentials(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireUserAuth("reco", "s3cret")

	cfg := redisConfig(mr)
	cfg.Redis.RedisUsername = "reco"
	cfg.Redis.RedisPassword = "wrong"

	client, err := NewRedisClient(cfg)
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(mr)
	mr.Close()

	_, err := NewRedisClient(cfg)
	assert.Error(t, err)
}

func TestCloseRedisClientNil(t *testing.T) {
	assert.NoError(t, CloseRedisClient(nil))
}
