package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTiming(t *testing.T) (*Timing, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewTiming(rdb, 30*time.Second), mr
}

func TestTimingFallbackWithoutRedis(t *testing.T) {
	timing := NewTiming(nil, 30*time.Second)
	assert.Equal(t, 30*time.Second, timing.AverageJobTime(context.Background()))

	// Record on a nil client is a no-op, not a panic.
	timing.Record(context.Background(), time.Second)
}

func TestTimingFallbackWithEmptySample(t *testing.T) {
	timing, _ := newTestTiming(t)
	assert.Equal(t, 30*time.Second, timing.AverageJobTime(context.Background()))
}

func TestTimingAveragesRecordedDurations(t *testing.T) {
	timing, _ := newTestTiming(t)
	ctx := context.Background()

	timing.Record(ctx, 10*time.Second)
	timing.Record(ctx, 20*time.Second)

	assert.Equal(t, 15*time.Second, timing.AverageJobTime(ctx))
}

func TestTimingSampleIsBounded(t *testing.T) {
	timing, mr := newTestTiming(t)
	ctx := context.Background()

	for i := 0; i < durationsKept+20; i++ {
		timing.Record(ctx, time.Second)
	}

	values, err := mr.List(durationsKey)
	require.NoError(t, err)
	assert.Len(t, values, durationsKept)
}
