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

// Package stateserializer is the single-writer loop that linearizes every
// world-state mutation, per spec §4.9.
//
// Grounded on prover/consumer.go's single-goroutine consume-ack-nak loop,
// translated from NATS messages to queue.Queue work items.
package stateserializer

import (
	"math/big"

	"github.com/provideplatform/rollup-aggregator/batch"
	"github.com/provideplatform/rollup-aggregator/chain"
	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/notify"
	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
	"github.com/provideplatform/rollup-aggregator/worldstate"
)

// RollupSubmitter drives a built rollup witness through proof generation
// and on-chain submission; ProofGenFailed and ChainSubmitFailed (spec §7)
// are both handled here without promoting any world-state mutation.
type RollupSubmitter interface {
	// Submit attempts to prove and submit the given rollup. It returns
	// false (never an error the caller must inspect) when the batch
	// should be dropped, per spec §4.4/§7 ProofGenFailed.
	Submit(rollup *rollupbuilder.Rollup) bool
}

// Serializer is the StateSerializer component, per spec §4.9.
type Serializer struct {
	State      *worldstate.Store
	Builder    *rollupbuilder.Builder
	Submitter  RollupSubmitter
	StateQueue *queue.Queue

	// Notifier broadcasts rollup lifecycle events over NATS. A nil
	// Notifier is valid and simply means no cross-process notifications
	// are dispatched (e.g. in unit tests).
	Notifier *notify.Publisher
}

// Run consumes stateQueue until cancelled. No two items run concurrently;
// all world-state mutations are linearized, per spec §4.9/§5.
func (s *Serializer) Run() {
	for {
		item, ok := s.StateQueue.Get()
		if !ok {
			common.Log.Debugf("state serializer exiting; state queue cancelled")
			return
		}
		if item == nil {
			continue
		}

		s.handle(item)
	}
}

func (s *Serializer) handle(item queue.Item) {
	switch v := item.(type) {
	case batch.BatchReady:
		s.handleBatchReady(v)
	case *chain.Block:
		s.handleBlock(v)
	default:
		common.Log.Warningf("state serializer received unexpected item of type %T", item)
	}
}

// handleBatchReady runs RollupBuilder over a closed batch, then hands the
// resulting witness to the Submitter, per spec §4.8 step 6. A build or
// proof/submission failure drops the batch without mutating world state,
// per spec §7 ProofGenFailed/ChainSubmitFailed.
func (s *Serializer) handleBatchReady(item batch.BatchReady) {
	rollup, err := s.Builder.Build(item.Batch)
	if err != nil {
		common.Log.Warningf("aborting batch: %s", err.Error())
		return
	}

	if ok := s.Submitter.Submit(rollup); !ok {
		common.Log.Warningf("invalid proof; dropping batch for rollup %d", rollup.RollupID)
		s.Notifier.Dispatch(rollup.RollupID, notify.EventRejected, nil)
		return
	}

	s.Notifier.Dispatch(rollup.RollupID, notify.EventSubmitted, nil)
}

// handleBlock applies a confirmed block's data entries, nullifiers, and
// root registration, then commits, per spec §4.9's block-handling item
// (steps 1-5).
func (s *Serializer) handleBlock(block *chain.Block) {
	for i, entry := range block.DataEntries {
		index := new(big.Int).SetUint64(block.DataStartIndex + uint64(i))
		if err := s.State.Put(worldstate.TreeData, index, entry); err != nil {
			common.Log.Panicf("fatal state io error applying block %d data entry %d; %s", block.RollupID, i, err.Error())
		}
	}

	if uint64(len(block.DataEntries)) < block.NumDataEntries {
		padIndex := new(big.Int).SetUint64(block.DataStartIndex + block.NumDataEntries - 1)
		if err := s.State.Put(worldstate.TreeData, padIndex, make([]byte, 64)); err != nil {
			common.Log.Panicf("fatal state io error padding block %d; %s", block.RollupID, err.Error())
		}
	}

	dataRoot, err := s.State.Root(worldstate.TreeData)
	if err != nil {
		common.Log.Panicf("fatal state io error reading data root for block %d; %s", block.RollupID, err.Error())
	}
	rootKey := worldstate.Low16(dataRoot)
	if err := s.State.Put(worldstate.TreeRoot, rootKey, worldstate.RootKnown); err != nil {
		common.Log.Panicf("fatal state io error registering known root for block %d; %s", block.RollupID, err.Error())
	}

	for _, nullifier := range block.Nullifiers {
		key := new(big.Int).SetBytes(nullifier)
		if err := s.State.Put(worldstate.TreeNullifier, key, worldstate.NullifierSpent); err != nil {
			common.Log.Panicf("fatal state io error applying nullifier for block %d; %s", block.RollupID, err.Error())
		}
	}

	if err := s.State.Commit(); err != nil {
		common.Log.Panicf("fatal state io error committing block %d; %s", block.RollupID, err.Error())
	}

	common.Log.Debugf("applied confirmed block for rollup %d; data size now %d", block.RollupID, block.DataStartIndex+block.NumDataEntries)
	s.Notifier.Dispatch(block.RollupID, notify.EventConfirmed, nil)
}
