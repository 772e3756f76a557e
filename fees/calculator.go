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

// Package fees converts on-chain gas costs into per-asset fee quotes via a
// price oracle, and scores how much surplus a candidate batch is paying
// above the minimum, per spec §4.5.
package fees

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// TxType tags the kind of proof a fee is being computed for, per spec §4.5
// / §9 ("Polymorphic proof payloads").
type TxType int

// TxType order is fixed; FeeQuotes.FeeConstants is indexed in this order.
const (
	Deposit TxType = iota
	Transfer
	WithdrawToWallet
	WithdrawToContract
	Account
	DefiDeposit
	DefiClaim
)

var txTypeOrder = []TxType{Deposit, Transfer, WithdrawToWallet, WithdrawToContract, Account, DefiDeposit, DefiClaim}

// Oracle resolves live gas/asset prices; an external collaborator per
// spec §6 (PriceTracker). A price of 0 signals "unknown" and fee
// computations for that asset degrade to 0.
type Oracle interface {
	AssetPrice(assetID string) (*uint256.Int, error)
	GasPrice() (*uint256.Int, error)
}

// Asset carries the per-asset, per-tx-type fee construction inputs listed
// in spec §4.5.
type Asset struct {
	ID                     string
	Decimals               uint
	GasConstants           map[TxType]uint64
	BaseTxGas              uint64
	MaxFeeGasPrice         *uint256.Int // 0 means "no cap"
	FeeGasPriceMultiplier  uint64       // scaled by 100 internally, e.g. 100 == 1.0x
	FeeFree                bool
}

// Calculator holds the asset configuration and oracle needed to compute
// fee quotes and batch surplus, per spec §4.5.
//
// Grounded on no direct teacher precedent (the teacher has no fee
// subsystem); struct/method shape follows the teacher's model-method
// idiom (a holder type with typed fields, not a bag of free functions);
// all gas/price arithmetic uses holiman/uint256, the u256 idiom
// jam-duna-jamduna and parsdao-pars use for gas/price math.
type Calculator struct {
	Assets          map[string]*Asset
	Oracle          Oracle
	TxsPerRollup    uint64
	PublishInterval uint64 // seconds
}

// SurplusRatios are the fixed priority tiers a fee quote is built around,
// per spec §4.5.
var SurplusRatios = []float64{1, 0.9, 0.5, 0}

// FeeQuote is one (fee, time) priority tier within FeeQuotes.BaseFeeQuotes.
type FeeQuote struct {
	Fee  *uint256.Int
	Time uint64 // seconds
}

// FeeQuotes is the per-asset response shape from spec §4.5.
type FeeQuotes struct {
	FeeConstants   map[TxType]*uint256.Int
	BaseFeeQuotes  []FeeQuote
}

// MinTxFee returns feeConstant + baseFee for the given asset/txType, or 0
// for ACCOUNT proofs and fee-free assets, per spec §4.5.
func (c *Calculator) MinTxFee(assetID string, txType TxType) (*uint256.Int, error) {
	asset, ok := c.Assets[assetID]
	if !ok {
		return uint256.NewInt(0), nil
	}
	if txType == Account || asset.FeeFree {
		return uint256.NewInt(0), nil
	}

	gas := asset.GasConstants[txType] + asset.BaseTxGas
	return c.toAssetPrice(asset, gas)
}

// FeeQuotes computes the fee quote shape for the given asset, per spec
// §4.5: one fee constant per fixed tx type, then one (fee,time) pair per
// surplus ratio tier.
func (c *Calculator) FeeQuotes(assetID string) (*FeeQuotes, error) {
	asset, ok := c.Assets[assetID]
	if !ok {
		return nil, nil
	}

	constants := make(map[TxType]*uint256.Int, len(txTypeOrder))
	for _, t := range txTypeOrder {
		fee, err := c.MinTxFee(assetID, t)
		if err != nil {
			return nil, err
		}
		constants[t] = fee
	}

	baseFee, err := c.toAssetPrice(asset, asset.BaseTxGas)
	if err != nil {
		return nil, err
	}

	quotes := make([]FeeQuote, 0, len(SurplusRatios))
	for _, rho := range SurplusRatios {
		multiplier := 1 + int64(math.Round(float64(c.TxsPerRollup)*(1-rho)))
		fee := new(uint256.Int).Mul(baseFee, uint256.NewInt(uint64(multiplier)))

		timeSec := uint64(math.Max(300, float64(c.PublishInterval)*rho))

		quotes = append(quotes, FeeQuote{Fee: fee, Time: timeSec})
	}

	return &FeeQuotes{FeeConstants: constants, BaseFeeQuotes: quotes}, nil
}

// toAssetPrice converts a gas amount into the given asset's native units,
// per spec §4.5: apply(gas·10^decimals) / oraclePrice(assetId), where
// apply(v) = min(v·maxFeeGasPrice, v·gasPrice·multiplierPct/100).
func (c *Calculator) toAssetPrice(asset *Asset, gas uint64) (*uint256.Int, error) {
	price, err := c.oraclePrice(asset.ID)
	if err != nil {
		return nil, err
	}
	if price == nil || price.IsZero() {
		return uint256.NewInt(0), nil
	}

	scaled := new(uint256.Int).Mul(uint256.NewInt(gas), pow10(asset.Decimals))

	gasPrice, err := c.gasPrice()
	if err != nil {
		return nil, err
	}

	byMultiplier := new(uint256.Int).Mul(scaled, gasPrice)
	byMultiplier.Mul(byMultiplier, uint256.NewInt(asset.FeeGasPriceMultiplier))
	byMultiplier.Div(byMultiplier, uint256.NewInt(100))

	applied := byMultiplier
	if asset.MaxFeeGasPrice != nil && !asset.MaxFeeGasPrice.IsZero() {
		byCap := new(uint256.Int).Mul(scaled, asset.MaxFeeGasPrice)
		if byCap.Lt(byMultiplier) {
			applied = byCap
		}
	}

	return new(uint256.Int).Div(applied, price), nil
}

// toEthPrice back-converts an asset-native amount into gas/native-asset
// units, per spec §4.5: v·oraclePrice(assetId)/10^decimals.
func (c *Calculator) ToEthPrice(assetID string, v *uint256.Int) (*uint256.Int, error) {
	asset, ok := c.Assets[assetID]
	if !ok {
		return v, nil
	}

	price, err := c.oraclePrice(assetID)
	if err != nil {
		return nil, err
	}
	if price == nil || price.IsZero() {
		return uint256.NewInt(0), nil
	}

	converted := new(uint256.Int).Mul(v, price)
	converted.Div(converted, pow10(asset.Decimals))
	return converted, nil
}

// SurplusRatio sums per-tx (txFee - minTxFee) in native-asset units and
// returns clamp(1 - sum/(baseFee*txsPerRollup), 0, 1), per spec §4.5.
// ACCOUNT proofs count as fee-free; for DEFI_DEPOSIT/DEFI_CLAIM the asset
// is the bridge's input asset (callers are expected to pass that asset
// id in assetID for those tx types).
func (c *Calculator) SurplusRatio(assetID string, baseTxGas uint64, txFees []struct {
	TxType TxType
	Fee    *uint256.Int
}) (float64, error) {
	if len(txFees) == 0 {
		return 1, nil
	}

	asset, ok := c.Assets[assetID]
	if !ok {
		return 1, nil
	}

	surplus := new(uint256.Int)
	for _, tf := range txFees {
		if tf.TxType == Account || asset.FeeFree {
			continue
		}
		min, err := c.MinTxFee(assetID, tf.TxType)
		if err != nil {
			return 0, err
		}
		if tf.Fee.Gt(min) {
			diff := new(uint256.Int).Sub(tf.Fee, min)
			surplus.Add(surplus, diff)
		}
	}

	baseFee, err := c.toAssetPrice(asset, baseTxGas)
	if err != nil {
		return 0, err
	}
	denom := new(uint256.Int).Mul(baseFee, uint256.NewInt(c.TxsPerRollup))
	if denom.IsZero() {
		return 1, nil
	}

	ratio := 1 - ratioFloat(surplus, denom)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}

// oraclePrice resolves the configured oracle's asset price, degrading to 0
// ("unknown") when no oracle is wired or the asset isn't recognized by it,
// per spec §6 (PriceTracker.getAssetPrice).
func (c *Calculator) oraclePrice(assetID string) (*uint256.Int, error) {
	if c.Oracle == nil {
		return uint256.NewInt(0), nil
	}
	return c.Oracle.AssetPrice(assetID)
}

// gasPrice resolves the configured oracle's gas price, per spec §6
// (PriceTracker.getGasPrice).
func (c *Calculator) gasPrice() (*uint256.Int, error) {
	if c.Oracle == nil {
		return uint256.NewInt(0), nil
	}
	return c.Oracle.GasPrice()
}

func pow10(n uint) *uint256.Int {
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint(0); i < n; i++ {
		result.Mul(result, ten)
	}
	return result
}

// ratioFloat converts numer/denom into a float64 via big.Float, since
// uint256 itself has no fractional division.
func ratioFloat(numer, denom *uint256.Int) float64 {
	if denom.IsZero() {
		return 0
	}
	n := new(big.Float).SetInt(numer.ToBig())
	d := new(big.Float).SetInt(denom.ToBig())
	result, _ := new(big.Float).Quo(n, d).Float64()
	return result
}
