package zkp

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/provideplatform/rollup-aggregator/fees"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProof(t *testing.T, txType fees.TxType, n1, n2 *big.Int, assetID string, fee *big.Int, vk1, vk2, snark []byte) []byte {
	t.Helper()

	buf := make([]byte, 0, 256)
	buf = append(buf, byte(txType))
	buf = append(buf, pad32(n1.Bytes())...)
	buf = append(buf, pad32(n2.Bytes())...)
	buf = append(buf, make([]byte, rootWidth)...)
	buf = append(buf, make([]byte, noteWidth)...)
	buf = append(buf, make([]byte, noteWidth)...)
	require.Less(t, len(assetID), 256)
	buf = append(buf, byte(len(assetID)))
	buf = append(buf, []byte(assetID)...)
	buf = append(buf, pad32(fee.Bytes())...)
	buf = append(buf, lenPrefixed(vk1)...)
	buf = append(buf, lenPrefixed(vk2)...)
	buf = append(buf, snark...)
	return buf
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func lenPrefixed(b []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	return append(lenBuf[:], b...)
}

func TestParseRoundTripsFields(t *testing.T) {
	proof := buildProof(t, fees.Transfer, big.NewInt(11), big.NewInt(22), "usdc", big.NewInt(500), []byte("vk1"), []byte("vk2"), []byte("snark-proof-bytes"))

	var p Parser
	parsed, err := p.Parse(proof)
	require.NoError(t, err)

	assert.Equal(t, fees.Transfer, parsed.TxType)
	assert.Equal(t, big.NewInt(11), parsed.Nullifier1)
	assert.Equal(t, big.NewInt(22), parsed.Nullifier2)
	assert.Equal(t, "usdc", parsed.AssetID)
	assert.Equal(t, big.NewInt(500), parsed.Fee)
	assert.Equal(t, []byte("vk1"), parsed.ViewingKey1)
	assert.Equal(t, []byte("vk2"), parsed.ViewingKey2)
	assert.Equal(t, []byte("snark-proof-bytes"), parsed.Proof)
}

func TestParseRejectsTooShort(t *testing.T) {
	var p Parser
	_, err := p.Parse([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRejectsMissingSnarkProof(t *testing.T) {
	proof := buildProof(t, fees.Deposit, big.NewInt(1), big.NewInt(2), "eth", big.NewInt(0), nil, nil, nil)

	var p Parser
	_, err := p.Parse(proof)
	assert.Error(t, err)
}
