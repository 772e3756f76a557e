package chain

import (
	"encoding/binary"
	"fmt"
)

// rollupProofDataHeaderSize is the fixed-width header every rollup proof
// blob carries ahead of its data/nullifier payload: rollupId, rollupSize,
// dataStartIndex, numDataEntries, numNullifiers, each a big-endian uint64.
const rollupProofDataHeaderSize = 5 * 8

// leafWidth is the width, in bytes, of a data entry or nullifier encoded
// within rollup proof call-data, matching worldstate's leaf width.
const leafWidth = 64

// parseRollupProofData extracts rollupId, rollupSize, dataStartIndex,
// numDataEntries, the padded data entries and the nullifiers out of the
// rollup proof call-data blob submitted on-chain, per spec §4.3
// ("extracts rollupId, rollupSize from the first bytes of the rollup
// proof") and §3 (Block fields).
func parseRollupProofData(proof []byte) (rollupID, rollupSize, dataStartIndex, numDataEntries uint64, dataEntries, nullifiers [][]byte, err error) {
	if len(proof) < rollupProofDataHeaderSize {
		return 0, 0, 0, 0, nil, nil, fmt.Errorf("rollup proof data too short to contain a header: %d bytes", len(proof))
	}

	rollupID = binary.BigEndian.Uint64(proof[0:8])
	rollupSize = binary.BigEndian.Uint64(proof[8:16])
	dataStartIndex = binary.BigEndian.Uint64(proof[16:24])
	numDataEntries = binary.BigEndian.Uint64(proof[24:32])
	numNullifiers := binary.BigEndian.Uint64(proof[32:40])

	offset := rollupProofDataHeaderSize

	dataEntries = make([][]byte, 0, numDataEntries)
	for i := uint64(0); i < numDataEntries; i++ {
		end := offset + leafWidth
		if end > len(proof) {
			return 0, 0, 0, 0, nil, nil, fmt.Errorf("rollup proof data truncated reading data entry %d", i)
		}
		dataEntries = append(dataEntries, proof[offset:end])
		offset = end
	}

	nullifiers = make([][]byte, 0, numNullifiers)
	for i := uint64(0); i < numNullifiers; i++ {
		end := offset + leafWidth
		if end > len(proof) {
			return 0, 0, 0, 0, nil, nil, fmt.Errorf("rollup proof data truncated reading nullifier %d", i)
		}
		nullifiers = append(nullifiers, proof[offset:end])
		offset = end
	}

	return rollupID, rollupSize, dataStartIndex, numDataEntries, dataEntries, nullifiers, nil
}
