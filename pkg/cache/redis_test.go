package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tahfidz-admin-api/pkg/config"
)

func TestNewRedisDisabledWithoutHost(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptions(t *testing.T) {
	opts := options(config.RedisConfig{Host: "cache", DB: 2})
	require.NotNil(t, opts)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.ReadTimeout)
}
