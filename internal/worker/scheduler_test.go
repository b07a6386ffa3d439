package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(nil)

	require.NoError(t, s.Register("sweep", "@every 1m", func(ctx context.Context) error { return nil }))
	require.NoError(t, s.Register("backup", "0 0 3 * * *", func(ctx context.Context) error { return nil }))
	require.NoError(t, s.Register("purge", "30 4 * * *", func(ctx context.Context) error { return nil }))

	err := s.Register("broken", "every minute", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(nil)
	var runs int32

	require.NoError(t, s.Register("tick", "@every 1s", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("job errors are logged")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestJobAdapters(t *testing.T) {
	ctx := context.Background()

	var sweptAt time.Time
	sweep := ExpirySweep(func(ctx context.Context, now time.Time) (int, error) {
		sweptAt = now
		return 2, nil
	})
	require.NoError(t, sweep(ctx))
	assert.WithinDuration(t, time.Now(), sweptAt, time.Second)

	var cutoff time.Time
	purge := SyncQueuePurge(func(ctx context.Context, c time.Time) (int64, error) {
		cutoff = c
		return 0, errors.New("db closed")
	}, 24*time.Hour)
	assert.Error(t, purge(ctx))
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), cutoff, time.Second)
}

func TestSchedulerRunRespectsTimeout(t *testing.T) {
	s := NewScheduler(nil)
	s.timeout = 20 * time.Millisecond

	var sawDeadline atomic.Bool
	s.run("slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})
	assert.True(t, sawDeadline.Load())
}
