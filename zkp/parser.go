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

// Package zkp adapts the teacher's gnark circuit provider into the
// join-split Parser/Verifier admission.Gate depends on, per spec §4.6.
//
// Grounded on chain/block.go's fixed-header binary decode idiom (rollup
// proof call-data has the same shape problem: extract a handful of
// plaintext fields ahead of an opaque proof blob) applied to the
// client-submitted tx wire format, which has no on-chain ABI of its own —
// spec §9 treats it as a schema the aggregator owns, same as the rollup
// proof call-data.
package zkp

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/provideplatform/rollup-aggregator/fees"
	"github.com/provideplatform/rollup-aggregator/tx"
)

const (
	nullifierWidth = 32
	noteWidth      = 64
	rootWidth      = 32
)

// Parser decodes a client-submitted proof blob into its admission-relevant
// fields, per spec §3/§4.6 step 1.
//
// Wire format: txType (1 byte) || nullifier1 (32) || nullifier2 (32) ||
// noteTreeRoot (32) || newNote1 (64) || newNote2 (64) || assetIDLen (1) ||
// assetID || fee (32, big-endian) || vk1Len (2, BE) || viewingKey1 ||
// vk2Len (2, BE) || viewingKey2 || snarkProof (remainder).
type Parser struct{}

// Parse implements admission.Parser.
func (Parser) Parse(proof []byte) (*tx.JoinSplitProof, error) {
	const headerSize = 1 + nullifierWidth*2 + rootWidth + noteWidth*2
	if len(proof) < headerSize+1 {
		return nil, fmt.Errorf("proof too short to contain a join-split header: %d bytes", len(proof))
	}

	offset := 0
	txType := fees.TxType(proof[offset])
	offset++

	nullifier1 := new(big.Int).SetBytes(proof[offset : offset+nullifierWidth])
	offset += nullifierWidth
	nullifier2 := new(big.Int).SetBytes(proof[offset : offset+nullifierWidth])
	offset += nullifierWidth

	noteTreeRoot := append([]byte(nil), proof[offset:offset+rootWidth]...)
	offset += rootWidth

	newNote1 := append([]byte(nil), proof[offset:offset+noteWidth]...)
	offset += noteWidth
	newNote2 := append([]byte(nil), proof[offset:offset+noteWidth]...)
	offset += noteWidth

	if offset >= len(proof) {
		return nil, fmt.Errorf("proof truncated before assetId length")
	}
	assetIDLen := int(proof[offset])
	offset++
	if offset+assetIDLen > len(proof) {
		return nil, fmt.Errorf("proof truncated reading assetId")
	}
	assetID := string(proof[offset : offset+assetIDLen])
	offset += assetIDLen

	if offset+32 > len(proof) {
		return nil, fmt.Errorf("proof truncated reading fee")
	}
	fee := new(big.Int).SetBytes(proof[offset : offset+32])
	offset += 32

	viewingKey1, offset, err := readLenPrefixed(proof, offset)
	if err != nil {
		return nil, fmt.Errorf("proof truncated reading viewingKey1: %w", err)
	}
	viewingKey2, offset, err := readLenPrefixed(proof, offset)
	if err != nil {
		return nil, fmt.Errorf("proof truncated reading viewingKey2: %w", err)
	}

	snarkProof := append([]byte(nil), proof[offset:]...)
	if len(snarkProof) == 0 {
		return nil, fmt.Errorf("proof missing snark proof payload")
	}

	return &tx.JoinSplitProof{
		TxType:       txType,
		Proof:        snarkProof,
		Nullifier1:   nullifier1,
		Nullifier2:   nullifier2,
		NewNote1:     newNote1,
		NewNote2:     newNote2,
		NoteTreeRoot: noteTreeRoot,
		ViewingKey1:  viewingKey1,
		ViewingKey2:  viewingKey2,
		AssetID:      assetID,
		Fee:          fee,
	}, nil
}

func readLenPrefixed(buf []byte, offset int) ([]byte, int, error) {
	if offset+2 > len(buf) {
		return nil, offset, fmt.Errorf("missing length prefix")
	}
	n := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
	offset += 2
	if offset+n > len(buf) {
		return nil, offset, fmt.Errorf("truncated payload of declared length %d", n)
	}
	val := append([]byte(nil), buf[offset:offset+n]...)
	return val, offset + n, nil
}
