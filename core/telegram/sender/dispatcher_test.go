package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	defer d.Close()

	var calls atomic.Int32
	done := make(chan error, 1)
	err := d.Submit(context.Background(), Job{
		Action: "send.text",
		Run: func() error {
			if calls.Add(1) < 3 {
				return &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return nil
		},
		Done: func(err error) { done <- err },
	})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	var observed []error
	var mu sync.Mutex
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond, Observe: func(_ string, err error) {
		mu.Lock()
		observed = append(observed, err)
		mu.Unlock()
	}})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("telegram: chat not found (400)")
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 1)
	assert.Error(t, observed[0])
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()

	err := d.Enqueue(context.Background(), "x", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	err = d.Submit(context.Background(), Job{Run: func() error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "fill", "", func() error { return nil }))

	err := d.Enqueue(context.Background(), "overflow", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Submit(ctx, Job{Run: func() error { return nil }}), context.DeadlineExceeded)

	close(release)
	d.Close()
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:ABC-def_9/sendMessage": timeout`)
	assert.NotContains(t, sanitizeErrorMessage(err), "ABC-def_9")
	assert.Contains(t, sanitizeErrorMessage(err), "bot<redacted>")
}
