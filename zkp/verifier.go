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

package zkp

import (
	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/zkp/lib/circuits/gnark"
	"github.com/provideplatform/rollup-aggregator/zkp/providers"
)

// Verifier runs the join-split circuit verifier against a parsed proof,
// per spec §4.6 step 4, implementing admission.Verifier.
//
// Grounded on prover/prover.go's Verify method (decode verifying key once,
// delegate the heavy lifting to the gnark provider) adapted from an
// in-process HTTP-triggered call to admission's synchronous fast-reject
// path.
type Verifier struct {
	Provider     *providers.GnarkCircuitProvider
	VerifyingKey []byte
	SRS          []byte
}

// NewVerifier constructs a Verifier for the join-split circuit, curve and
// proving scheme given, with the verifying key and (PLONK only) SRS
// resolved from vault by the caller, mirroring the teacher's
// vault-held-key idiom.
func NewVerifier(curveID, provingScheme *string, verifyingKey, srs []byte) *Verifier {
	return &Verifier{
		Provider:     providers.InitGnarkCircuitProvider(curveID, provingScheme),
		VerifyingKey: verifyingKey,
		SRS:          srs,
	}
}

// Verify implements admission.Verifier.
func (v *Verifier) Verify(proof *tx.JoinSplitProof) (bool, error) {
	publicWitness := &gnark.JoinSplitCircuit{}
	assignPublic(publicWitness, proof)

	if err := v.Provider.Verify(proof.Proof, v.VerifyingKey, publicWitness, v.SRS); err != nil {
		common.Log.Debugf("join-split proof verification failed: %s", err.Error())
		return false, nil
	}

	return true, nil
}

func assignPublic(witness *gnark.JoinSplitCircuit, proof *tx.JoinSplitProof) {
	witness.NoteTreeRoot = proof.NoteTreeRoot
	witness.Nullifier1 = proof.Nullifier1
	witness.Nullifier2 = proof.Nullifier2
}
