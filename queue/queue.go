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

// Package queue is the in-process FIFO work queue primitive described in
// spec §4.2: a bounded multi-producer/single-consumer queue with a
// sentinel-null flush convention and cooperative cancellation.
//
// Grounded on the goroutine/sync.WaitGroup/context-cancel idiom the teacher
// uses to drive its NATS consumer loops (prover/consumer.go,
// circuit/consumer.go), translated here from a subscription loop to a
// plain buffered-channel loop since spec §4.2 is explicitly an in-process
// primitive, not a message bus — the teacher's NATS stack is reserved for
// genuine cross-process notification (see the `notify` package, used by
// stateserializer).
package queue

import (
	"context"
	"sync"
)

// Item is a unit of work published to a Queue. A nil Item is the
// sentinel-null flush signal described in spec §4.2.
type Item interface{}

// Queue is a bounded, cancellable, multi-producer/single-consumer FIFO.
// Publish order is preserved; Get blocks until an item is available or the
// queue is cancelled.
type Queue struct {
	mu     sync.Mutex
	ch     chan Item
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Queue with the given buffer capacity. A capacity of 0
// yields a synchronous (unbuffered) queue.
func New(capacity int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ch:     make(chan Item, capacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Put publishes an item in FIFO order. Publishing nil is the flush
// sentinel convention (spec §4.2); concurrent producers are permitted.
// Put is a no-op once the queue has been cancelled.
func (q *Queue) Put(item Item) {
	if q.ctx.Err() != nil {
		return
	}
	select {
	case <-q.ctx.Done():
		return
	case q.ch <- item:
	}
}

// Get blocks for the next item in publish order. ok is false only when the
// queue has been cancelled and no further items will ever be delivered —
// this is the tombstone consumer loops check for before exiting.
func (q *Queue) Get() (item Item, ok bool) {
	if q.ctx.Err() != nil {
		return nil, false
	}
	select {
	case <-q.ctx.Done():
		return nil, false
	case item = <-q.ch:
		return item, true
	}
}

// Cancel terminates the queue. Consumers blocked in Get return
// immediately with ok=false; no further items are delivered, matching the
// "cancels both queues (consumers exit cleanly)" requirement of spec §5.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancel()
}

// Len returns the number of items currently buffered, for diagnostics and
// tests only; not part of the queue's ordering contract.
func (q *Queue) Len() int {
	return len(q.ch)
}
