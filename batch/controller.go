/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package batch is the timing/size policy controller that closes rollups,
// per spec §4.7.
//
// Grounded on queue.Queue plus Go's time.Timer deadline-reset idiom; no
// teacher precedent exists for a timer/queue select loop, so this is built
// the way the teacher builds consumer loops (single goroutine, common.Log
// on every state transition) rather than adapted from a specific file.
package batch

import (
	"time"

	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/tx"
)

// Batch is a closed, ordered group of admitted proofs, per spec §4.7
// ("Ordering guarantee").
type Batch []*tx.JoinSplitProof

// Controller is the BatchController, per spec §4.7.
type Controller struct {
	RollupSize        int
	MaxRollupWaitTime time.Duration
	MinRollupInterval time.Duration

	TxQueue    *queue.Queue
	StateQueue *queue.Queue

	pending          Batch
	lastTxReceivedAt time.Time
	flushTimer       *time.Timer
}

// New constructs a Controller, failing fast (ConfigError, spec §7) if
// minRollupInterval exceeds maxRollupWaitTime.
func New(rollupSize int, maxRollupWaitTime, minRollupInterval time.Duration, txQueue, stateQueue *queue.Queue) *Controller {
	if minRollupInterval > maxRollupWaitTime {
		common.Log.Panicf("invalid batch controller configuration: minRollupInterval (%s) exceeds maxRollupWaitTime (%s)", minRollupInterval, maxRollupWaitTime)
	}

	return &Controller{
		RollupSize:        rollupSize,
		MaxRollupWaitTime: maxRollupWaitTime,
		MinRollupInterval: minRollupInterval,
		TxQueue:           txQueue,
		StateQueue:        stateQueue,
		pending:           make(Batch, 0, rollupSize),
	}
}

// Run consumes txQueue until cancelled, applying the close policy from
// spec §4.7. It is intended to run as the sole consumer of TxQueue in its
// own goroutine.
func (c *Controller) Run() {
	c.resetFlushTimer()

	for {
		item, ok := c.TxQueue.Get()
		if !ok {
			common.Log.Debugf("batch controller exiting; tx queue cancelled")
			return
		}

		flushSentinel := item == nil
		if !flushSentinel {
			proof, ok := item.(*tx.JoinSplitProof)
			if !ok {
				common.Log.Warningf("batch controller received unexpected item of type %T", item)
				continue
			}
			c.pending = append(c.pending, proof)
			c.lastTxReceivedAt = time.Now()
		}

		c.resetFlushTimer()

		if c.shouldClose(flushSentinel) {
			c.close()
		}
	}
}

// shouldClose implements spec §4.7's close decision: pending non-empty AND
// (flushSentinel OR pending.len == rollupSize OR lastTxReceivedAt < now -
// maxRollupWaitTime).
func (c *Controller) shouldClose(flushSentinel bool) bool {
	if len(c.pending) == 0 {
		return false
	}
	if flushSentinel {
		return true
	}
	if len(c.pending) == c.RollupSize {
		return true
	}
	return c.lastTxReceivedAt.Before(time.Now().Add(-c.MaxRollupWaitTime))
}

// close drains pending into a Batch, dispatches it to the state queue, and
// throttles the next iteration by minRollupInterval, per spec §4.7.
func (c *Controller) close() {
	batch := c.pending
	c.pending = make(Batch, 0, c.RollupSize)

	common.Log.Debugf("closing batch of %d tx(s)", len(batch))

	c.StateQueue.Put(BatchReady{Batch: batch})

	time.Sleep(c.MinRollupInterval)
}

// resetFlushTimer reschedules the flush sentinel to fire maxRollupWaitTime
// from now, per spec §4.7.
func (c *Controller) resetFlushTimer() {
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.flushTimer = time.AfterFunc(c.MaxRollupWaitTime, func() {
		c.TxQueue.Put(nil)
	})
}

// BatchReady is the state-queue work item produced when a batch closes; it
// is what RollupBuilder consumes, per spec §4.7/§4.8.
type BatchReady struct {
	Batch Batch
}
