package batch

import (
	"testing"
	"time"

	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeTriggeredClose(t *testing.T) {
	txQueue := queue.New(8)
	stateQueue := queue.New(8)
	c := New(4, time.Hour, time.Millisecond, txQueue, stateQueue)

	go c.Run()

	for i := 0; i < 4; i++ {
		txQueue.Put(&tx.JoinSplitProof{})
	}

	item, ok := stateQueue.Get()
	require.True(t, ok)
	ready, ok := item.(BatchReady)
	require.True(t, ok)
	assert.Len(t, ready.Batch, 4)
}

func TestTimerTriggeredClose(t *testing.T) {
	txQueue := queue.New(8)
	stateQueue := queue.New(8)
	c := New(4, 20*time.Millisecond, time.Millisecond, txQueue, stateQueue)

	go c.Run()

	txQueue.Put(&tx.JoinSplitProof{})

	item, ok := stateQueue.Get()
	require.True(t, ok)
	ready, ok := item.(BatchReady)
	require.True(t, ok)
	assert.Len(t, ready.Batch, 1)
}

func TestShouldCloseEmptyPendingNeverCloses(t *testing.T) {
	c := &Controller{RollupSize: 4, MaxRollupWaitTime: time.Hour}
	assert.False(t, c.shouldClose(true))
}

func TestConfigErrorOnInvertedTiming(t *testing.T) {
	assert.Panics(t, func() {
		New(4, time.Second, time.Hour, queue.New(1), queue.New(1))
	})
}
