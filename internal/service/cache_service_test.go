package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out string
	assert.False(t, svc.Get(ctx, "run:1", &out))

	svc.Set(ctx, "run:1", "payload", 0)
	assert.True(t, svc.Get(ctx, "run:1", &out))
	assert.Equal(t, "payload", out)

	svc.Set(ctx, "run:2", "other", time.Second)
	svc.Delete(ctx, "run:1")
	assert.False(t, svc.Get(ctx, "run:1", &out))

	svc.Invalidate(ctx, "run:*")
	assert.False(t, svc.Get(ctx, "run:2", &out))

	assert.InDelta(t, 1.0/4.0, metrics.Snapshot().CacheHitRatio, 0.0001)
}

func TestCacheServiceSwallowsStoreFailures(t *testing.T) {
	repo := newMemCacheRepo()
	repo.failSet = errors.New("redis down")
	svc := NewCacheService(repo, nil, 0, nil, true)

	assert.NotPanics(t, func() { svc.Set(context.Background(), "k", 1, 0) })
	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, 1, repo.sets)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	svc.Set(context.Background(), "k", 1, 0)
	assert.False(t, svc.Enabled())
	assert.Zero(t, repo.sets)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	var out int
	assert.False(t, nilSvc.Get(context.Background(), "k", &out))
}
