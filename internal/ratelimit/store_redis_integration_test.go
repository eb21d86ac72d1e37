//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clocklayer/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := NewRedisStore(rc.Client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := time.Now()
	store.now = func() time.Time { return base }
	limit := Limit{Requests: 2, Window: time.Minute}

	for i := range 2 {
		res, err := store.Allow(ctx, "ratelimit:test:a", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := store.Allow(ctx, "ratelimit:test:a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.WithinDuration(t, base.Add(time.Minute), res.ResetAt, time.Millisecond)

	store.now = func() time.Time { return base.Add(61 * time.Second) }
	res, err = store.Allow(ctx, "ratelimit:test:a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	ttl, err := rc.Client.PTTL(ctx, "ratelimit:test:a").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
