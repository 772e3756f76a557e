package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrderPreserved(t *testing.T) {
	q := New(8)
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	for i := 0; i < 5; i++ {
		item, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, i, item)
	}
}

func TestNilIsFlushSentinel(t *testing.T) {
	q := New(1)
	q.Put(nil)
	item, ok := q.Get()
	require.True(t, ok)
	assert.Nil(t, item)
}

func TestCancelUnblocksConsumer(t *testing.T) {
	q := New(0)
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Get()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Cancel()

	select {
	case ok := <-done:
		assert.False(t, ok, "Get must return ok=false once cancelled")
	case <-time.After(time.Second):
		t.Fatal("consumer did not unblock after Cancel")
	}
}

func TestPutAfterCancelIsNoop(t *testing.T) {
	q := New(1)
	q.Cancel()
	q.Put("ignored")
	_, ok := q.Get()
	assert.False(t, ok)
}

func TestConcurrentProducersPreserveDeliveryCount(t *testing.T) {
	q := New(100)
	const n = 50

	for i := 0; i < n; i++ {
		go q.Put(i)
	}

	received := 0
	for received < n {
		_, ok := q.Get()
		require.True(t, ok)
		received++
	}
	assert.Equal(t, n, received)
}
