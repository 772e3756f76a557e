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

// Package admission is the per-tx validation gate (spec §4.6): nullifier
// freshness, note-root membership, verifier check, then enqueue.
//
// Grounded on worldstate.Store's read surface plus the teacher's
// validate()-then-reject error-accumulation idiom (Circuit.validate,
// Prover.validate, circuit/circuit.go / prover/prover.go), adapted to a
// single fast-reject path since admission errors are per-tx, not
// accumulated like a model's field-validation errors.
package admission

import (
	"fmt"
	"math/big"

	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/worldstate"
)

// Parser extracts a JoinSplitProof's admission-relevant fields from an
// opaque proof blob, per spec §3/§4.6 step 1.
type Parser interface {
	Parse(proof []byte) (*tx.JoinSplitProof, error)
}

// Verifier runs the join-split circuit verifier on a parsed proof, per
// spec §4.6 step 4.
type Verifier interface {
	Verify(proof *tx.JoinSplitProof) (bool, error)
}

// WorldStateReader is the read-only surface of worldstate.Store that
// admission needs. Admission only ever reads committed state (spec §4.6,
// §5 O3): no staged mutation from an in-flight rollup is ever visible
// here, since GetCommitted skips worldstate.Store's overlay entirely.
type WorldStateReader interface {
	GetCommitted(treeID int, key *big.Int) ([]byte, error)
}

// Gate is the TxAdmission component, per spec §4.6.
type Gate struct {
	State    WorldStateReader
	Parser   Parser
	Verifier Verifier
	TxQueue  *queue.Queue

	// Recorder persists the admission outcome, per SPEC_FULL §5 ("the
	// admission tx-record table"). A nil Recorder is valid; Admit's
	// behavior is unchanged, it simply records nothing.
	Recorder *Recorder

	// EscapeHatchOpen reports the supervisory escape-hatch window state
	// from the chain adapter, per SPEC_FULL §7. When true, admitted txs
	// are marked second-class (logged, not blocked) rather than rejected.
	EscapeHatchOpen func() bool
}

// Admit runs the five-step admission sequence from spec §4.6 and, on
// success, enqueues the parsed proof onto the tx queue.
func (g *Gate) Admit(proof []byte, meta tx.SenderMeta) error {
	parsed, err := g.Parser.Parse(proof)
	if err != nil {
		common.Log.Debugf("rejected tx: malformed proof; %s", err.Error())
		g.record(proof, meta, false, err.Error(), false)
		return fmt.Errorf("%w: %s", ErrMalformedProof, err.Error())
	}

	if err := g.checkNullifierFresh(parsed.Nullifier1); err != nil {
		g.record(proof, meta, false, err.Error(), false)
		return err
	}
	if err := g.checkNullifierFresh(parsed.Nullifier2); err != nil {
		g.record(proof, meta, false, err.Error(), false)
		return err
	}

	if err := g.checkNoteRootKnown(parsed.NoteTreeRoot); err != nil {
		g.record(proof, meta, false, err.Error(), false)
		return err
	}

	ok, err := g.Verifier.Verify(parsed)
	if err != nil || !ok {
		common.Log.Debugf("rejected tx: proof verification failed")
		g.record(proof, meta, false, "verifier rejected proof", false)
		return ErrVerifierFailed
	}

	secondClass := g.EscapeHatchOpen != nil && g.EscapeHatchOpen()
	if secondClass {
		common.Log.Debugf("admitting tx as second-class; escape hatch window is open")
	}

	g.TxQueue.Put(parsed)
	g.record(proof, meta, true, "", secondClass)
	return nil
}

func (g *Gate) record(proof []byte, meta tx.SenderMeta, accepted bool, rejectReason string, secondClass bool) {
	if g.Recorder != nil {
		g.Recorder.Record(proof, meta, accepted, rejectReason, secondClass)
	}
}

// checkNullifierFresh rejects if the nullifier tree already holds a spent
// leaf at key, per spec §4.6 step 2.
func (g *Gate) checkNullifierFresh(nullifier *big.Int) error {
	if nullifier == nil {
		return nil
	}
	val, err := g.State.GetCommitted(worldstate.TreeNullifier, nullifier)
	if err != nil {
		return err
	}
	for _, b := range val {
		if b != 0 {
			common.Log.Debugf("rejected tx: nullifier %s already exists", nullifier.String())
			return ErrNullifierExists
		}
	}
	return nil
}

// checkNoteRootKnown rejects unless the root tree has a known-root entry
// at low16(noteTreeRoot), per spec §4.6 step 3.
func (g *Gate) checkNoteRootKnown(noteTreeRoot []byte) error {
	key := worldstate.Low16(noteTreeRoot)
	val, err := g.State.GetCommitted(worldstate.TreeRoot, key)
	if err != nil {
		return err
	}
	for _, b := range val {
		if b != 0 {
			return nil
		}
	}
	common.Log.Debugf("rejected tx: note root %x does not exist", noteTreeRoot)
	return ErrUnknownNoteRoot
}
