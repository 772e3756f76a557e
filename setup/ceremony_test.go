package setup

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCeremonyDefaultsWordSizeAndExpectedEntropy(t *testing.T) {
	parties := [][]byte{[]byte("party-a"), []byte("party-b")}
	c := NewCeremony(parties, &Config{Index: 0})

	assert.Equal(t, defaultWordSize, c.Config.WordSize)
	assert.Equal(t, defaultWordSize*(len(parties)+1), c.Config.ExpectedEntropy)
	assert.Len(t, c.entropy, c.Config.ExpectedEntropy)
}

func TestNewCeremonyHonorsExplicitWordSize(t *testing.T) {
	c := NewCeremony([][]byte{[]byte("party-a")}, &Config{Index: 0, WordSize: 16})
	assert.Equal(t, 16, c.Config.WordSize)
	assert.Equal(t, 16*2, c.Config.ExpectedEntropy)
}

func TestAddPartyRejectsMismatchedWordSize(t *testing.T) {
	a := NewCeremony([][]byte{[]byte("party-b")}, &Config{Index: 0, WordSize: 32})
	b := NewCeremony([][]byte{[]byte("party-a")}, &Config{Index: 1, WordSize: 16})

	err := a.AddParty(b)
	require.Error(t, err)
}

func TestAddPartyFoldsInOtherPartysEntropy(t *testing.T) {
	a := NewCeremony([][]byte{[]byte("party-b")}, &Config{Index: 0, WordSize: 4})
	b := NewCeremony([][]byte{[]byte("party-a")}, &Config{Index: 1, WordSize: 4})

	copy(b.entropy[b.Config.Index*b.Config.WordSize:], []byte{1, 2, 3, 4})

	require.NoError(t, a.AddParty(b))
	assert.Equal(t, []byte{1, 2, 3, 4}, a.entropy[b.Config.Index*b.Config.WordSize:(b.Config.Index+1)*b.Config.WordSize])
}

func TestGenerateEntropyFillsThisPartysWord(t *testing.T) {
	c := NewCeremony([][]byte{[]byte("party-b")}, &Config{Index: 0, WordSize: 8})
	require.NoError(t, c.GenerateEntropy())

	word := c.entropy[0:8]
	nonZero := false
	for _, b := range word {
		if b != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero, "expected generated entropy to be non-zero with overwhelming probability")
}

func TestGenerateSRSProducesAnSRSForEachSupportedCurve(t *testing.T) {
	for _, curveID := range []ecc.ID{ecc.BN254, ecc.BLS12_381, ecc.BLS12_377, ecc.BW6_761, ecc.BLS24_315} {
		c := NewCeremony([][]byte{[]byte("party-b")}, &Config{Index: 0, WordSize: 4})
		require.NoError(t, c.GenerateEntropy())

		srs, err := c.GenerateSRS(8, curveID)
		require.NoError(t, err)
		assert.NotNil(t, srs)
	}
}

func TestGenerateSRSRejectsUnknownCurve(t *testing.T) {
	c := NewCeremony([][]byte{[]byte("party-b")}, &Config{Index: 0, WordSize: 4})
	require.NoError(t, c.GenerateEntropy())

	_, err := c.GenerateSRS(8, ecc.ID(255))
	require.Error(t, err)
}

func TestCurveIDDefaultsToBN254(t *testing.T) {
	c := &Ceremony{}
	assert.Equal(t, ecc.BN254, c.curveID())
}

func TestCurveIDResolvesKnownNames(t *testing.T) {
	cases := map[string]ecc.ID{
		"BN254":     ecc.BN254,
		"BLS12_381": ecc.BLS12_381,
		"BLS12_377": ecc.BLS12_377,
		"BW6_761":   ecc.BW6_761,
		"BLS24_315": ecc.BLS24_315,
	}
	for name, expected := range cases {
		c := &Ceremony{CurveID: name}
		assert.Equal(t, expected, c.curveID())
	}
}
