package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/application/scheduler"
)

func TestScheduler_RunsJobsPeriodically(t *testing.T) {
	s := scheduler.New(context.Background())

	var prices, ticks atomic.Int32
	require.NoError(t, s.Every("price", time.Second, func(context.Context) error {
		prices.Add(1)
		return nil
	}))
	require.NoError(t, s.Every("tick", time.Second, func(context.Context) error {
		ticks.Add(1)
		return errors.New("failures are logged, not fatal")
	}))

	s.Start()
	assert.Eventually(t, func() bool { return prices.Load() >= 2 && ticks.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := scheduler.New(context.Background())
	assert.Error(t, s.Every("bad", 0, func(context.Context) error { return nil }))
}

func TestScheduler_StopWaitsForRunningJob(t *testing.T) {
	s := scheduler.New(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Every("slow", time.Second, func(context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.True(t, finished.Load())
}

func TestScheduler_CancelledBaseContextSkipsRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := scheduler.New(ctx)

	ran := false
	s.RunOnce("price", func(context.Context) error {
		ran = true
		return nil
	})
	assert.False(t, ran)

	s = scheduler.New(context.Background())
	s.RunOnce("price", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}
