package worker

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// durationsKey holds the rolling sample of recent job durations in
// milliseconds.
const (
	durationsKey  = "docsmart:job_durations_ms"
	durationsKept = 50
)

// Timing keeps a rolling sample of job durations in redis so the submit ETA
// reflects actual throughput. With no redis client (or an empty sample) the
// static fallback applies.
type Timing struct {
	rdb      *redis.Client
	fallback time.Duration
}

// NewTiming creates a Timing over an optional redis client. rdb may be nil.
func NewTiming(rdb *redis.Client, fallback time.Duration) *Timing {
	return &Timing{rdb: rdb, fallback: fallback}
}

// Record appends one job duration to the sample.
func (t *Timing) Record(ctx context.Context, d time.Duration) {
	if t.rdb == nil {
		return
	}
	pipe := t.rdb.Pipeline()
	pipe.LPush(ctx, durationsKey, d.Milliseconds())
	pipe.LTrim(ctx, durationsKey, 0, durationsKept-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[Timing] Could not record job duration: %v", err)
	}
}

// AverageJobTime returns the mean of the recorded sample, or the fallback
// when redis is absent, empty, or unreachable.
func (t *Timing) AverageJobTime(ctx context.Context) time.Duration {
	if t.rdb == nil {
		return t.fallback
	}

	values, err := t.rdb.LRange(ctx, durationsKey, 0, durationsKept-1).Result()
	if err != nil || len(values) == 0 {
		return t.fallback
	}

	var totalMs int64
	var counted int64
	for _, v := range values {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			totalMs += ms
			counted++
		}
	}
	if counted == 0 {
		return t.fallback
	}
	return time.Duration(totalMs/counted) * time.Millisecond
}
