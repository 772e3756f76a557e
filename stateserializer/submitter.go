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

package stateserializer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/provideplatform/rollup-aggregator/chain"
	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
)

// ProofGenerator is the subset of proofgen.Client the Submitter depends on.
type ProofGenerator interface {
	CreateProof(rollup *rollupbuilder.Rollup) ([]byte, bool)
}

// RollupInserter persists a submitted rollup's history row, per spec §6.
type RollupInserter interface {
	Insert(rollupID, dataStartIndex uint64, rollupRoot []byte, txHash *string) error
}

// Submitter drives a built Rollup witness through proof generation and
// on-chain submission, the C4->C3->rollupdb leg of spec §4.8 step 6.
// ProofGenFailed and ChainSubmitFailed (spec §7) are both absorbed here:
// neither mutates world state, since real insertion happens only on block
// confirmation (§4.9).
//
// Grounded on provider/consumer.go's "call out, log on failure, never
// panic the consumer loop" idiom; the operator signing step has no direct
// teacher precedent (the teacher never submits on-chain transactions
// itself) and is built the minimal way with go-ethereum's crypto.Sign,
// the same ECDSA primitive chain.marshalSignature already expects.
type Submitter struct {
	ProofGen   ProofGenerator
	Chain      *chain.Adapter
	RollupDB   RollupInserter
	OperatorKey *ecdsa.PrivateKey
	GasLimit   uint64
}

// Submit implements RollupSubmitter.
func (s *Submitter) Submit(rollup *rollupbuilder.Rollup) bool {
	proofBytes, ok := s.ProofGen.CreateProof(rollup)
	if !ok {
		common.Log.Debugf("proof generator returned no proof for rollup %d", rollup.RollupID)
		return false
	}

	signatures, sigIndexes, err := s.signTxs(rollup)
	if err != nil {
		common.Log.Warningf("failed to sign rollup %d for submission: %s", rollup.RollupID, err.Error())
		return false
	}

	viewingKeys := flattenViewingKeys(rollup.ViewingKeys)

	ctx := context.Background()
	txHash, err := s.Chain.SubmitRollup(ctx, proofBytes, signatures, sigIndexes, viewingKeys, s.GasLimit)
	if err != nil {
		common.Log.Warningf("chain submission failed for rollup %d; %s", rollup.RollupID, err.Error())
		return false
	}

	hex := txHash.Hex()
	if err := s.RollupDB.Insert(rollup.RollupID, rollup.DataStartIndex, rollup.RollupRoot, &hex); err != nil {
		common.Log.Warningf("failed to persist history row for submitted rollup %d; %s", rollup.RollupID, err.Error())
	}

	return true
}

// signTxs produces one operator ECDSA signature per tx proof in the
// rollup, keyed by the hash of the proof blob, with sigIndexes identifying
// which tx each signature authorizes, per spec §4.3's submitRollup shape.
func (s *Submitter) signTxs(rollup *rollupbuilder.Rollup) ([][]byte, []*big.Int, error) {
	signatures := make([][]byte, 0, len(rollup.TxProofs))
	sigIndexes := make([]*big.Int, 0, len(rollup.TxProofs))

	for i, proof := range rollup.TxProofs {
		digest := crypto.Keccak256(proof)
		sig, err := crypto.Sign(digest, s.OperatorKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to sign tx %d: %w", i, err)
		}
		signatures = append(signatures, sig)
		sigIndexes = append(sigIndexes, big.NewInt(int64(i)))
	}

	return signatures, sigIndexes, nil
}

// flattenViewingKeys concatenates every tx's viewing key blobs in order,
// per spec §4.8 step 6 ("submit via C3 with flattened viewing keys").
func flattenViewingKeys(viewingKeys [][]byte) []byte {
	var buf bytes.Buffer
	for _, vk := range viewingKeys {
		buf.Write(vk)
	}
	return buf.Bytes()
}
