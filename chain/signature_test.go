package chain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSignaturePadsBitExactly(t *testing.T) {
	r := bytes.Repeat([]byte{0xaa}, 32)
	s := bytes.Repeat([]byte{0xbb}, 32)
	v := byte(0x1b)

	sig := append(append(append([]byte{}, r...), s...), v)

	out, err := marshalSignature(sig)
	require.NoError(t, err)
	require.Len(t, out, 96)

	assert.Equal(t, r, out[0:32])
	assert.Equal(t, s, out[32:64])
	assert.Equal(t, make([]byte, 31), out[64:95])
	assert.Equal(t, v, out[95])
}

func TestMarshalSignatureRejectsWrongLength(t *testing.T) {
	_, err := marshalSignature([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestMarshalSignaturesIsLengthPreserving(t *testing.T) {
	sig := append(bytes.Repeat([]byte{0x01}, 64), 0x1c)
	sigs := [][]byte{sig, sig, sig}

	out, err := marshalSignatures(sigs)
	require.NoError(t, err)
	assert.Equal(t, len(sigs)*96, len(out))

	for i := 0; i < len(sigs); i++ {
		record := out[i*96 : (i+1)*96]
		assert.Equal(t, make([]byte, 31), record[64:95])
		assert.Equal(t, sig[64], record[95])
	}
}
