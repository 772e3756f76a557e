package fees

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct {
	assetPrice *uint256.Int
	gasPrice   *uint256.Int
}

func (f *fixedOracle) AssetPrice(assetID string) (*uint256.Int, error) { return f.assetPrice, nil }
func (f *fixedOracle) GasPrice() (*uint256.Int, error)                 { return f.gasPrice, nil }

func newFixtureCalculator() *Calculator {
	return &Calculator{
		Assets: map[string]*Asset{
			"eth": {
				ID:                    "eth",
				Decimals:              18,
				BaseTxGas:             10_000,
				GasConstants:          map[TxType]uint64{},
				MaxFeeGasPrice:        uint256.NewInt(0),
				FeeGasPriceMultiplier: 100,
			},
		},
		Oracle: &fixedOracle{
			assetPrice: uint256.MustFromDecimal("1000000000000000000"), // 1e18
			gasPrice:   uint256.NewInt(2),
		},
		TxsPerRollup:    10,
		PublishInterval: 600,
	}
}

func TestFeeQuotesShape(t *testing.T) {
	c := newFixtureCalculator()

	quotes, err := c.FeeQuotes("eth")
	require.NoError(t, err)
	require.NotNil(t, quotes)

	require.Len(t, quotes.BaseFeeQuotes, 4)
	assert.Equal(t, uint64(600), quotes.BaseFeeQuotes[0].Time)
	assert.Equal(t, uint64(540), quotes.BaseFeeQuotes[1].Time)
	assert.Equal(t, uint64(300), quotes.BaseFeeQuotes[2].Time)
	assert.Equal(t, uint64(300), quotes.BaseFeeQuotes[3].Time)

	base := quotes.BaseFeeQuotes[0].Fee
	expectedTier1 := new(uint256.Int).Mul(base, uint256.NewInt(2)) // 1 + round(10*0.1) = 2
	assert.True(t, quotes.BaseFeeQuotes[1].Fee.Eq(expectedTier1))

	expectedTier3 := new(uint256.Int).Mul(base, uint256.NewInt(11)) // 1 + round(10*1.0)
	assert.True(t, quotes.BaseFeeQuotes[3].Fee.Eq(expectedTier3))
}

func TestSurplusRatioEmptyBatchIsOne(t *testing.T) {
	c := newFixtureCalculator()
	ratio, err := c.SurplusRatio("eth", 10_000, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), ratio)
}

func TestSurplusRatioDecreasesAsFeeIncreases(t *testing.T) {
	c := newFixtureCalculator()
	minFee, err := c.MinTxFee("eth", Transfer)
	require.NoError(t, err)

	low := []struct {
		TxType TxType
		Fee    *uint256.Int
	}{{TxType: Transfer, Fee: minFee}}

	high := []struct {
		TxType TxType
		Fee    *uint256.Int
	}{{TxType: Transfer, Fee: new(uint256.Int).Add(minFee, uint256.NewInt(1_000_000_000))}}

	ratioLow, err := c.SurplusRatio("eth", 10_000, low)
	require.NoError(t, err)
	ratioHigh, err := c.SurplusRatio("eth", 10_000, high)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ratioLow, ratioHigh)
}

func TestMinTxFeeZeroForAccountType(t *testing.T) {
	c := newFixtureCalculator()
	fee, err := c.MinTxFee("eth", Account)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestMinTxFeeZeroForFeeFreeAsset(t *testing.T) {
	c := newFixtureCalculator()
	c.Assets["eth"].FeeFree = true
	fee, err := c.MinTxFee("eth", Transfer)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestUnknownOraclePriceDegradesToZero(t *testing.T) {
	c := newFixtureCalculator()
	c.Oracle = &fixedOracle{assetPrice: uint256.NewInt(0), gasPrice: uint256.NewInt(2)}

	fee, err := c.MinTxFee("eth", Transfer)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}
