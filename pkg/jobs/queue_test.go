package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "mail"}))
	}

	assert.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return q.Stats().Processed == 5 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	var attempts atomic.Int32
	dead := make(chan Job, 1)
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		DeadLetter: func(job Job, err error) { dead <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a@example.com"}))

	select {
	case job := <-dead:
		assert.Equal(t, "a@example.com", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dead-lettered")
	}
	assert.EqualValues(t, 3, attempts.Load())
	stats := q.Stats()
	assert.EqualValues(t, 2, stats.Retried)
	assert.EqualValues(t, 1, stats.DeadLetter)
}

func TestQueueRejectsWhenStoppedOrFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	err := q.Enqueue(Job{ID: "early"})
	assert.ErrorIs(t, err, ErrQueueStopped)

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "first"}))
	// wait for the worker to pick up the first job so the buffer slot is free
	assert.Eventually(t, func() bool { return q.Stats().Queued == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "second"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "third"}), ErrQueueFull)
	assert.EqualValues(t, 1, q.Stats().Dropped)

	close(block)
	q.Stop()
}
