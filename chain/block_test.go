package chain

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRollupProofData(rollupID, rollupSize, dataStartIndex uint64, numData []byte, nulls []byte, numDataEntries, numNullifiers uint64) []byte {
	header := make([]byte, rollupProofDataHeaderSize)
	binary.BigEndian.PutUint64(header[0:8], rollupID)
	binary.BigEndian.PutUint64(header[8:16], rollupSize)
	binary.BigEndian.PutUint64(header[16:24], dataStartIndex)
	binary.BigEndian.PutUint64(header[24:32], numDataEntries)
	binary.BigEndian.PutUint64(header[32:40], numNullifiers)

	out := append(header, numData...)
	out = append(out, nulls...)
	return out
}

func TestParseRollupProofDataRoundTrips(t *testing.T) {
	entry := make([]byte, leafWidth)
	entry[0] = 0x01
	nullifier := make([]byte, leafWidth)
	nullifier[0] = 0x02

	proof := buildRollupProofData(7, 2, 10, entry, nullifier, 1, 1)

	rollupID, rollupSize, dataStartIndex, numDataEntries, entries, nulls, err := parseRollupProofData(proof)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), rollupID)
	assert.Equal(t, uint64(2), rollupSize)
	assert.Equal(t, uint64(10), dataStartIndex)
	assert.Equal(t, uint64(1), numDataEntries)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
	require.Len(t, nulls, 1)
	assert.Equal(t, nullifier, nulls[0])
}

func TestParseRollupProofDataRejectsTooShort(t *testing.T) {
	_, _, _, _, _, _, err := parseRollupProofData([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestParseRollupProofDataRejectsTruncatedEntries(t *testing.T) {
	header := make([]byte, rollupProofDataHeaderSize)
	binary.BigEndian.PutUint64(header[24:32], 1) // numDataEntries = 1, but no payload follows
	_, _, _, _, _, _, err := parseRollupProofData(header)
	assert.Error(t, err)
}
