package fifo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbridge/esl/pkg/esl/fifo"
)

// TestPushPopOrder verifies FIFO ordering.
func TestPushPopOrder(t *testing.T) {
	q := fifo.New[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

// TestPopBlocksUntilPush verifies a blocked Pop wakes on Push.
func TestPopBlocksUntilPush(t *testing.T) {
	q := fifo.New[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push("hello"))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

// TestPopContextCancel verifies cancellation unblocks Pop.
func TestPopContextCancel(t *testing.T) {
	q := fifo.New[int]()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestCloseDrainsRemaining verifies queued elements survive Close and the
// queue reports closed afterwards.
func TestCloseDrainsRemaining(t *testing.T) {
	q := fifo.New[int]()
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	q.Close()
	q.Close() // idempotent

	v, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, fifo.ErrClosed)

	assert.ErrorIs(t, q.Push(3), fifo.ErrClosed)
}

// TestCloseWakesBlockedPop verifies Close unblocks waiting consumers.
func TestCloseWakesBlockedPop(t *testing.T) {
	q := fifo.New[int]()

	errs := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, fifo.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Close")
	}
}

// TestTryPop verifies the non-blocking variant.
func TestTryPop(t *testing.T) {
	q := fifo.New[int]()

	_, ok := q.TryPop()
	assert.False(t, ok)

	require.NoError(t, q.Push(42))
	v, ok := q.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}
