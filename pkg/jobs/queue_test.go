package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	done := make(chan struct{}, 3)

	queue := NewQueue("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		processed = append(processed, task.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	queue.Start(context.Background())
	defer queue.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Enqueue(Task{ID: id, Kind: "test"}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, processed)
}

func TestQueueRetriesFailedTask(t *testing.T) {
	var attempts int32
	done := make(chan struct{})

	queue := NewQueue("test", func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return assert.AnError
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 5, RetryDelay: 10 * time.Millisecond})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Task{ID: "flaky", Kind: "test"}))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("task was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue("test", func(ctx context.Context, task Task) error { return nil }, QueueConfig{})
	err := queue.Enqueue(Task{ID: "early"})
	require.Error(t, err)
}
