package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 10, 2, 0)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[uint]bool{}
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *ScreenshotJob) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.ScreenshotID] = true
		return nil
	}))
	defer q.Stop(context.Background())

	for id := uint(1); id <= 5; id++ {
		require.NoError(t, q.PublishScreenshot(ctx, id))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 10, 1, 3, WithBackoff(time.Millisecond))
	ctx := context.Background()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *ScreenshotJob) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("ocr engine unavailable")
		}
		return nil
	}))
	defer q.Stop(context.Background())

	require.NoError(t, q.PublishScreenshot(ctx, 7))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueueStopsRetryingAfterMax(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 10, 1, 2, WithBackoff(time.Millisecond))
	ctx := context.Background()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *ScreenshotJob) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("still broken")
	}))
	defer q.Stop(context.Background())

	require.NoError(t, q.PublishScreenshot(ctx, 1))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueDoesNotRetryPermanentErrors(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 10, 1, 5, WithBackoff(time.Millisecond))
	ctx := context.Background()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *ScreenshotJob) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("already confirmed"))
	}))
	defer q.Stop(context.Background())

	require.NoError(t, q.PublishScreenshot(ctx, 1))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueSurvivesPanics(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 10, 1, 0)
	ctx := context.Background()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *ScreenshotJob) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		return nil
	}))
	defer q.Stop(context.Background())

	require.NoError(t, q.PublishScreenshot(ctx, 1))
	require.NoError(t, q.PublishScreenshot(ctx, 2))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestQueuePublishAfterStop(t *testing.T) {
	q := NewQueue(zerolog.Nop(), 1, 1, 0)
	require.NoError(t, q.Stop(context.Background()))

	err := q.PublishScreenshot(context.Background(), 1)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)
	assert.NoError(t, q.Stop(context.Background()))
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}
