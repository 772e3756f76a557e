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

// Package chain is the blockchain adapter (spec §4.3): it submits rollup
// proofs to the on-chain processor, streams confirmed rollup blocks,
// queries contract status and ERC-20 balances/allowances, and marshals
// signatures into the verifier's bit-exact wire format.
//
// Grounded on the teacher's vault/provide-go client-call idiom (typed
// request structs, common.Log.Warningf on failure) applied to
// go-ethereum's ethclient/bind/abi stack, the way jam-duna-jamduna and
// Taraxa-project-taraxa-evm use go-ethereum for contract and ABI
// interaction.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/provideplatform/rollup-aggregator/common"
)

// Status mirrors the on-chain processor's view state, per spec §4.3
// status().
type Status struct {
	NextRollupID *big.Int
	DataSize     *big.Int
	DataRoot     [32]byte
	NullRoot     [32]byte
	RootRoot     [32]byte
}

// EscapeStatus mirrors the escape-hatch window state, per spec §4.3
// escapeStatus().
type EscapeStatus struct {
	Open            bool
	BlocksRemaining uint32
}

// Block is a confirmed rollup block, decoded from a mined
// processRollup transaction, per spec §3.
type Block struct {
	BlockNum        uint64
	Created         uint64
	TxHash          ethcommon.Hash
	RollupProofData []byte
	ViewingKeysData []byte
	RollupID        uint64
	RollupSize      uint64
	DataStartIndex  uint64
	NumDataEntries  uint64
	DataEntries     [][]byte
	Nullifiers      [][]byte
}

// Adapter is the blockchain-facing side of the aggregator, per spec §4.3.
type Adapter struct {
	client          *ethclient.Client
	rollupABI       abi.ABI
	erc20ABI        abi.ABI
	contract        *bind.BoundContract
	contractAddress ethcommon.Address
	fromAddress     ethcommon.Address
	signer          bind.SignerFn

	mu        sync.Mutex
	listeners []chan *Block
}

// New constructs an Adapter dialed to rpcURL, bound to the rollup
// processor at contractAddress.
func New(rpcURL string, contractAddress ethcommon.Address, fromAddress ethcommon.Address, signer bind.SignerFn) (*Adapter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}

	rollupABI, err := abi.JSON(abiReader(rollupProcessorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rollup processor ABI: %w", err)
	}

	erc20ABI, err := abi.JSON(abiReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	contract := bind.NewBoundContract(contractAddress, rollupABI, client, client, client)

	return &Adapter{
		client:          client,
		rollupABI:       rollupABI,
		erc20ABI:        erc20ABI,
		contract:        contract,
		contractAddress: contractAddress,
		fromAddress:     fromAddress,
		signer:          signer,
	}, nil
}

// Status queries the processor's view methods, per spec §4.3 status().
func (a *Adapter) Status(ctx context.Context) (*Status, error) {
	opts := &bind.CallOpts{Context: ctx}

	status := &Status{}

	var nextRollupID []interface{}
	if err := a.contract.Call(opts, &nextRollupID, "nextRollupId"); err != nil {
		common.Log.Warningf("failed to query nextRollupId; %s", err.Error())
		return nil, err
	}
	status.NextRollupID = nextRollupID[0].(*big.Int)

	var dataSize []interface{}
	if err := a.contract.Call(opts, &dataSize, "dataSize"); err != nil {
		common.Log.Warningf("failed to query dataSize; %s", err.Error())
		return nil, err
	}
	status.DataSize = dataSize[0].(*big.Int)

	var dataRoot []interface{}
	if err := a.contract.Call(opts, &dataRoot, "dataRoot"); err != nil {
		return nil, err
	}
	status.DataRoot = dataRoot[0].([32]byte)

	var nullRoot []interface{}
	if err := a.contract.Call(opts, &nullRoot, "nullRoot"); err != nil {
		return nil, err
	}
	status.NullRoot = nullRoot[0].([32]byte)

	var rootRoot []interface{}
	if err := a.contract.Call(opts, &rootRoot, "rootRoot"); err != nil {
		return nil, err
	}
	status.RootRoot = rootRoot[0].([32]byte)

	return status, nil
}

// EscapeStatus queries the escape-hatch window, per spec §4.3
// escapeStatus().
func (a *Adapter) EscapeStatus(ctx context.Context) (*EscapeStatus, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := a.contract.Call(opts, &out, "getEscapeHatchStatus"); err != nil {
		common.Log.Warningf("failed to query escape hatch status; %s", err.Error())
		return nil, err
	}

	return &EscapeStatus{
		Open:            out[0].(bool),
		BlocksRemaining: uint32(out[1].(*big.Int).Uint64()),
	}, nil
}

// SubmitRollup marshals signatures and submits processRollup, per spec
// §4.3 submitRollup(). gasLimit of 0 lets the client estimate gas.
func (a *Adapter) SubmitRollup(ctx context.Context, proofBytes []byte, signatures [][]byte, sigIndexes []*big.Int, viewingKeys []byte, gasLimit uint64) (ethcommon.Hash, error) {
	marshaled, err := marshalSignatures(signatures)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to marshal signatures for submission: %w", err)
	}

	opts := &bind.TransactOpts{
		From:     a.fromAddress,
		Signer:   a.signer,
		Context:  ctx,
		GasLimit: gasLimit,
	}

	tx, err := a.contract.Transact(opts, "processRollup", proofBytes, marshaled, sigIndexes, viewingKeys)
	if err != nil {
		common.Log.Warningf("failed to submit rollup; %s", err.Error())
		return ethcommon.Hash{}, err
	}

	return tx.Hash(), nil
}

// AssetBalance queries balanceOf on the given ERC-20, per spec §4.3
// assetBalance().
func (a *Adapter) AssetBalance(ctx context.Context, assetAddress, owner ethcommon.Address) (*uint256.Int, error) {
	contract := bind.NewBoundContract(assetAddress, a.erc20ABI, a.client, nil, nil)
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := contract.Call(opts, &out, "balanceOf", owner); err != nil {
		return nil, err
	}

	balance, overflow := uint256.FromBig(out[0].(*big.Int))
	if overflow {
		return nil, fmt.Errorf("balance overflowed uint256")
	}
	return balance, nil
}

// AssetAllowance queries allowance on the given ERC-20, per spec §4.3
// assetAllowance().
func (a *Adapter) AssetAllowance(ctx context.Context, assetAddress, owner, spender ethcommon.Address) (*uint256.Int, error) {
	contract := bind.NewBoundContract(assetAddress, a.erc20ABI, a.client, nil, nil)
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}

	allowance, overflow := uint256.FromBig(out[0].(*big.Int))
	if overflow {
		return nil, fmt.Errorf("allowance overflowed uint256")
	}
	return allowance, nil
}

// BlocksFrom returns every confirmed Block at or after the block
// containing the RollupProcessed event tagged rollupId, each decoded from
// its transaction's processRollup call-data, per spec §4.3 blocksFrom().
func (a *Adapter) BlocksFrom(ctx context.Context, rollupID uint64, minConfirmations uint64) ([]*Block, error) {
	latest, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	if latest < minConfirmations {
		return nil, nil
	}
	toBlock := latest - minConfirmations

	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{a.contractAddress},
		Topics:    [][]ethcommon.Hash{{a.rollupABI.Events["RollupProcessed"].ID}},
	}

	logs, err := a.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter RollupProcessed logs: %w", err)
	}

	blocks := make([]*Block, 0, len(logs))
	for _, l := range logs {
		if l.BlockNumber > toBlock {
			continue
		}

		id := new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
		if id < rollupID {
			continue
		}

		tx, _, err := a.client.TransactionByHash(ctx, l.TxHash)
		if err != nil {
			common.Log.Warningf("failed to fetch transaction for rollup %d; %s", id, err.Error())
			continue
		}

		header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
		if err != nil {
			return nil, err
		}

		block, err := a.decodeBlock(tx, l.BlockNumber, header.Time, l.TxHash)
		if err != nil {
			common.Log.Warningf("failed to decode rollup block from transaction %s; %s", l.TxHash.Hex(), err.Error())
			continue
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}

// decodeBlock parses the processRollup call-data via the ABI, reading
// proofData and viewingKeys, then extracts rollupId/rollupSize from the
// first bytes of the rollup proof, per spec §4.3.
func (a *Adapter) decodeBlock(tx *types.Transaction, blockNum uint64, created uint64, txHash ethcommon.Hash) (*Block, error) {
	data := tx.Data()
	if len(data) < 4 {
		return nil, fmt.Errorf("transaction call-data too short to contain a method selector")
	}

	method, err := a.rollupABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ABI method: %w", err)
	}

	args := map[string]interface{}{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("failed to unpack processRollup call-data: %w", err)
	}

	proofData, ok := args["proofData"].([]byte)
	if !ok {
		return nil, fmt.Errorf("processRollup call-data missing proofData")
	}
	viewingKeys, _ := args["viewingKeys"].([]byte)

	rollupID, rollupSize, dataStartIndex, numDataEntries, dataEntries, nullifiers, err := parseRollupProofData(proofData)
	if err != nil {
		return nil, err
	}

	return &Block{
		BlockNum:        blockNum,
		Created:         created,
		TxHash:          txHash,
		RollupProofData: proofData,
		ViewingKeysData: viewingKeys,
		RollupID:        rollupID,
		RollupSize:      rollupSize,
		DataStartIndex:  dataStartIndex,
		NumDataEntries:  numDataEntries,
		DataEntries:     dataEntries,
		Nullifiers:      nullifiers,
	}, nil
}

// Subscribe registers a channel that receives fully-confirmed Blocks in
// rollup-id order, the "block" event stream from spec §4.3.
func (a *Adapter) Subscribe() <-chan *Block {
	ch := make(chan *Block, 16)
	a.mu.Lock()
	a.listeners = append(a.listeners, ch)
	a.mu.Unlock()
	return ch
}

func (a *Adapter) publish(block *Block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.listeners {
		ch <- block
	}
}

// WatchBlocks polls for newly confirmed RollupProcessed events starting at
// fromRollupID and publishes each decoded Block to every Subscribe()
// listener, in rollup-id order, driving the "block" event stream from spec
// §4.3/§2 until ctx is cancelled. It is the live counterpart to BlocksFrom,
// which only answers a single point-in-time query.
func (a *Adapter) WatchBlocks(ctx context.Context, fromRollupID uint64, minConfirmations uint64, pollInterval time.Duration) {
	next := fromRollupID

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			blocks, err := a.BlocksFrom(ctx, next, minConfirmations)
			if err != nil {
				common.Log.Warningf("failed to poll for confirmed rollup blocks; %s", err.Error())
				continue
			}

			for _, block := range blocks {
				a.publish(block)
				if block.RollupID >= next {
					next = block.RollupID + 1
				}
			}
		}
	}
}

// Close tears down the underlying RPC client and closes every subscriber
// channel, part of the cancellation sequence in spec §5.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.listeners {
		close(ch)
	}
	a.listeners = nil
	a.client.Close()
}
