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

// Package rollupbuilder snapshots world state, applies a batch's tx
// effects transiently, produces a Rollup witness, and rolls back, per
// spec §4.8. It runs inside the state queue, the sole writer of
// worldstate.Store.
//
// Grounded on worldstate.Store's path/commit/rollback surface plus
// zkp/lib/circuits/gnark/baseline_rollup.go's witness field names/shape
// (Proofs/Helpers), generalized from the teacher's fixed small example
// into the spec's rollupSize-parameterized witness.
package rollupbuilder

import (
	"fmt"
	"math/big"

	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/worldstate"
)

// Rollup is the immutable batch witness handed to the ProofGenerator, per
// spec §3 ("Rollup (batch witness)").
type Rollup struct {
	RollupID       uint64
	DataStartIndex uint64
	RollupSize     int
	TxProofs       [][]byte

	RollupRoot []byte

	OldDataRoot []byte
	NewDataRoot []byte
	OldDataPath worldstate.HashPath
	NewDataPath worldstate.HashPath

	OldNullRoot   []byte
	NewNullRoots  [][]byte
	OldNullPaths  []worldstate.HashPath
	NewNullPaths  []worldstate.HashPath

	OldRootRoot  []byte
	OldRootPaths []worldstate.HashPath

	ViewingKeys [][]byte
}

// NextRollupID resolves the next rollup id to assign, per spec §6.
type NextRollupID interface {
	NextRollupID() uint64
}

// Builder is the RollupBuilder component, per spec §4.8.
type Builder struct {
	State      *worldstate.Store
	RollupDB   NextRollupID
	RollupSize int
}

// Build runs the five-step snapshot/apply/witness/rollback sequence of
// spec §4.8 over a batch of at most RollupSize txs. If rollback fails, the
// caller must treat the run as fatal and halt the state queue (§4.8
// edge case).
func (b *Builder) Build(batch []*tx.JoinSplitProof) (*Rollup, error) {
	if len(batch) > b.RollupSize {
		return nil, fmt.Errorf("batch of %d tx(s) exceeds rollup size %d", len(batch), b.RollupSize)
	}

	dataStartIndex, err := b.State.Size(worldstate.TreeData)
	if err != nil {
		return nil, err
	}

	oldDataRoot, err := b.State.Root(worldstate.TreeData)
	if err != nil {
		return nil, err
	}
	oldDataPath, err := b.State.GetHashPath(worldstate.TreeData, new(big.Int).SetUint64(dataStartIndex))
	if err != nil {
		return nil, err
	}
	oldNullRoot, err := b.State.Root(worldstate.TreeNullifier)
	if err != nil {
		return nil, err
	}
	oldRootRoot, err := b.State.Root(worldstate.TreeRoot)
	if err != nil {
		return nil, err
	}

	r := &Rollup{
		RollupID:       b.RollupDB.NextRollupID(),
		DataStartIndex: dataStartIndex,
		RollupSize:     b.RollupSize,
		OldDataRoot:    oldDataRoot,
		OldDataPath:    oldDataPath,
		OldNullRoot:    oldNullRoot,
		OldRootRoot:    oldRootRoot,
	}

	next := dataStartIndex

	for _, proof := range batch {
		r.TxProofs = append(r.TxProofs, proof.Proof)
		r.ViewingKeys = append(r.ViewingKeys, proof.ViewingKey1, proof.ViewingKey2)

		if err := b.applyTx(r, proof, &next); err != nil {
			b.State.Rollback()
			return nil, fmt.Errorf("aborting batch: %w", err)
		}
	}

	newDataPath, err := b.State.GetHashPath(worldstate.TreeData, new(big.Int).SetUint64(dataStartIndex))
	if err != nil {
		b.State.Rollback()
		return nil, err
	}
	r.NewDataPath = newDataPath
	r.RollupRoot = worldstate.RollupRoot(newDataPath, dataStartIndex, b.RollupSize)

	newDataRoot, err := b.State.Root(worldstate.TreeData)
	if err != nil {
		b.State.Rollback()
		return nil, err
	}
	r.NewDataRoot = newDataRoot

	b.State.Rollback()

	common.Log.Debugf("built rollup %d witness for %d tx(s); rollup root %x", r.RollupID, len(batch), r.RollupRoot)

	return r, nil
}

// applyTx applies one tx's effects transiently, per spec §4.8 step 2. A
// nullifier observed already-spent at step 2.b is the double-spend
// collision described in spec §5 O3 — it aborts the whole batch (spec §9's
// first open question; preserved as drop-batch semantics, see DESIGN.md).
func (b *Builder) applyTx(r *Rollup, proof *tx.JoinSplitProof, next *uint64) error {
	if err := b.State.Put(worldstate.TreeData, new(big.Int).SetUint64(*next), proof.NewNote1); err != nil {
		return err
	}
	*next++
	if err := b.State.Put(worldstate.TreeData, new(big.Int).SetUint64(*next), proof.NewNote2); err != nil {
		return err
	}
	*next++

	for _, nullifier := range []*big.Int{proof.Nullifier1, proof.Nullifier2} {
		if nullifier == nil {
			continue
		}

		oldPath, err := b.State.GetHashPath(worldstate.TreeNullifier, nullifier)
		if err != nil {
			return err
		}

		existing, err := b.State.Get(worldstate.TreeNullifier, nullifier)
		if err != nil {
			return err
		}
		for _, bb := range existing {
			if bb != 0 {
				return fmt.Errorf("double-spend: nullifier %s already spent within this batch", nullifier.String())
			}
		}

		if err := b.State.Put(worldstate.TreeNullifier, nullifier, worldstate.NullifierSpent); err != nil {
			return err
		}

		newRoot, err := b.State.Root(worldstate.TreeNullifier)
		if err != nil {
			return err
		}
		newPath, err := b.State.GetHashPath(worldstate.TreeNullifier, nullifier)
		if err != nil {
			return err
		}

		r.NewNullRoots = append(r.NewNullRoots, newRoot)
		r.OldNullPaths = append(r.OldNullPaths, oldPath)
		r.NewNullPaths = append(r.NewNullPaths, newPath)
	}

	rootKey := worldstate.Low16(proof.NoteTreeRoot)
	oldRootPath, err := b.State.GetHashPath(worldstate.TreeRoot, rootKey)
	if err != nil {
		return err
	}
	r.OldRootPaths = append(r.OldRootPaths, oldRootPath)

	return nil
}
