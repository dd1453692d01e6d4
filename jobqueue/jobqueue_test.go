package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRunsAllJobs(t *testing.T) {
	q := New(context.Background(), 4)

	var done int64
	for i := 0; i < 50; i++ {
		q.Submit(func(ctx context.Context, q *Queue) error {
			atomic.AddInt64(&done, 1)
			return nil
		})
	}

	require.NoError(t, q.Close())
	require.Equal(t, int64(50), atomic.LoadInt64(&done))
}

func TestQueueSupportsRecursiveSubmit(t *testing.T) {
	q := New(context.Background(), 2)

	var done int64
	q.Submit(func(ctx context.Context, q *Queue) error {
		atomic.AddInt64(&done, 1)
		q.Submit(func(ctx context.Context, q *Queue) error {
			atomic.AddInt64(&done, 1)
			return nil
		})
		return nil
	})

	require.NoError(t, q.Close())
	require.Equal(t, int64(2), atomic.LoadInt64(&done))
}

func TestQueuePropagatesFirstError(t *testing.T) {
	q := New(context.Background(), 2)

	wantErr := errors.New("boom")
	q.Submit(func(ctx context.Context, q *Queue) error {
		return wantErr
	})

	err := q.Close()
	require.Error(t, err)
}

func TestQueueStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New(ctx, 1)

	q.Submit(func(ctx context.Context, q *Queue) error {
		cancel()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- q.Close() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not close after context cancel")
	}
}
