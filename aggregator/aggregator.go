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

// Package aggregator is the composition root wiring WorldStateStore, both
// queues, BatchController, RollupBuilder, StateSerializer, ProofGenerator
// and the blockchain Adapter into one pipeline, per SPEC_FULL §4.10.
//
// Grounded on the teacher's `common.RequireVault`-style fail-fast startup
// helper pattern (resolve-or-panic dependencies up front, then hand a
// ready struct to the caller), generalized here into Start/Stop rather
// than a package-level init, since the aggregator (unlike the teacher's
// HTTP handlers) owns long-running consumer goroutines that must be
// startable and stoppable as a unit.
package aggregator

import (
	"context"
	"crypto/ecdsa"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/jinzhu/gorm"

	"github.com/provideplatform/rollup-aggregator/admission"
	"github.com/provideplatform/rollup-aggregator/batch"
	"github.com/provideplatform/rollup-aggregator/chain"
	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/fees"
	"github.com/provideplatform/rollup-aggregator/notify"
	"github.com/provideplatform/rollup-aggregator/proofgen"
	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
	"github.com/provideplatform/rollup-aggregator/rollupdb"
	"github.com/provideplatform/rollup-aggregator/stateserializer"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/worldstate"
	"github.com/provideplatform/rollup-aggregator/zkp"
)

// Config carries the resolved dependencies and settings Aggregator needs
// to wire its pipeline. Values the aggregator cannot construct itself
// (a live DB handle, the chain RPC URL/contract address, operator keys,
// the verifying key/SRS, the fee oracle) are supplied by the caller, the
// same boundary the teacher draws between `common.RequireVault`-resolved
// dependencies and its HTTP handler layer.
type Config struct {
	DB *gorm.DB

	ChainRPCURL       string
	ContractAddress   ethcommon.Address
	OperatorAddress   ethcommon.Address
	OperatorSigner    bind.SignerFn
	OperatorKey       *ecdsa.PrivateKey
	MinConfirmations  uint64
	SubmitGasLimit    uint64

	ProofGenCommand string
	ProofGenArgs    []string

	CurveID       *string
	ProvingScheme *string
	VerifyingKey  []byte
	SRS           []byte

	FeeOracle fees.Oracle
	Assets    map[string]*fees.Asset
}

// Aggregator is the C10 composition root.
type Aggregator struct {
	cfg *common.RollupAggregatorConfig

	State    *worldstate.Store
	RollupDB *rollupdb.DB
	Chain    *chain.Adapter
	ProofGen *proofgen.Client
	Fees     *fees.Calculator

	Gate       *admission.Gate
	Batch      *batch.Controller
	Serializer *stateserializer.Serializer

	txQueue    *queue.Queue
	stateQueue *queue.Queue

	minConfirmations   uint64
	escapeHatchOpen    int32
	escapePollInterval time.Duration
	blockPollInterval  time.Duration
	cancel             context.CancelFunc
}

// New constructs an Aggregator from validated aggregator settings
// (common.RequireAggregatorConfig) and the dependency Config above, fully
// wired but not yet running.
func New(aggCfg *common.RollupAggregatorConfig, cfg *Config) (*Aggregator, error) {
	state := worldstate.New(cfg.DB, aggCfg.WorldStateDepth, cfg.CurveID)
	rollupDB := rollupdb.New(cfg.DB)

	chainAdapter, err := chain.New(cfg.ChainRPCURL, cfg.ContractAddress, cfg.OperatorAddress, cfg.OperatorSigner)
	if err != nil {
		return nil, err
	}

	proofGenClient, err := proofgen.New(cfg.ProofGenCommand, cfg.ProofGenArgs...)
	if err != nil {
		return nil, err
	}

	feeCalculator := &fees.Calculator{
		Assets:          cfg.Assets,
		Oracle:          cfg.FeeOracle,
		TxsPerRollup:    uint64(aggCfg.RollupSize),
		PublishInterval: uint64(aggCfg.MaxRollupWaitTime.Seconds()),
	}

	txQueue := queue.New(1024)
	stateQueue := queue.New(1024)

	builder := &rollupbuilder.Builder{State: state, RollupDB: rollupDB, RollupSize: aggCfg.RollupSize}

	submitter := &stateserializer.Submitter{
		ProofGen:    proofGenClient,
		Chain:       chainAdapter,
		RollupDB:    rollupDB,
		OperatorKey: cfg.OperatorKey,
		GasLimit:    cfg.SubmitGasLimit,
	}

	serializer := &stateserializer.Serializer{
		State:      state,
		Builder:    builder,
		Submitter:  submitter,
		StateQueue: stateQueue,
		Notifier:   &notify.Publisher{},
	}

	verifier := zkp.NewVerifier(cfg.CurveID, cfg.ProvingScheme, cfg.VerifyingKey, cfg.SRS)

	minConfirmations := cfg.MinConfirmations
	if minConfirmations == 0 {
		minConfirmations = 1
	}

	a := &Aggregator{
		cfg:                aggCfg,
		State:              state,
		RollupDB:           rollupDB,
		Chain:              chainAdapter,
		ProofGen:           proofGenClient,
		Fees:               feeCalculator,
		Batch:              batch.New(aggCfg.RollupSize, aggCfg.MaxRollupWaitTime, aggCfg.MinRollupInterval, txQueue, stateQueue),
		Serializer:         serializer,
		txQueue:            txQueue,
		stateQueue:         stateQueue,
		minConfirmations:   minConfirmations,
		escapePollInterval: 30 * time.Second,
		blockPollInterval:  15 * time.Second,
	}

	a.Gate = &admission.Gate{
		State:           state,
		Parser:          zkp.Parser{},
		Verifier:        verifier,
		TxQueue:         txQueue,
		Recorder:        admission.NewRecorder(cfg.DB),
		EscapeHatchOpen: a.isEscapeHatchOpen,
	}

	return a, nil
}

func (a *Aggregator) isEscapeHatchOpen() bool {
	return atomic.LoadInt32(&a.escapeHatchOpen) != 0
}

// Start launches the BatchController and StateSerializer consumer
// goroutines and replays/subscribes to confirmed chain blocks, per
// SPEC_FULL §4.10. It first replays any blocks confirmed since the last
// persisted rollup id (the "rollup replay on restart" supplemented
// feature), then forwards the live block stream onto the state queue.
func (a *Aggregator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	nextRollupID := a.RollupDB.NextRollupID()

	blocks, err := a.Chain.BlocksFrom(runCtx, nextRollupID, a.minConfirmations)
	if err != nil {
		cancel()
		return err
	}

	watchFromRollupID := nextRollupID
	for _, block := range blocks {
		a.stateQueue.Put(block)
		if block.RollupID >= watchFromRollupID {
			watchFromRollupID = block.RollupID + 1
		}
	}

	go a.Batch.Run()
	go a.Serializer.Run()
	go a.forwardBlocks(runCtx)
	go a.Chain.WatchBlocks(runCtx, watchFromRollupID, a.minConfirmations, a.blockPollInterval)
	go a.pollEscapeHatch(runCtx)

	common.Log.Debugf("aggregator started; replayed %d block(s) from rollup %d", len(blocks), nextRollupID)
	return nil
}

// pollEscapeHatch periodically checks the escape-hatch window, per
// SPEC_FULL §7: when open, admission marks new txs second-class rather than
// blocking them, a supervisory signal only.
func (a *Aggregator) pollEscapeHatch(ctx context.Context) {
	ticker := time.NewTicker(a.escapePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := a.Chain.EscapeStatus(ctx)
			if err != nil {
				common.Log.Warningf("failed to poll escape hatch status; %s", err.Error())
				continue
			}
			var open int32
			if status.Open {
				open = 1
				common.Log.Debugf("escape hatch window open; %d block(s) remaining", status.BlocksRemaining)
			}
			atomic.StoreInt32(&a.escapeHatchOpen, open)
		}
	}
}

func (a *Aggregator) forwardBlocks(ctx context.Context) {
	ch := a.Chain.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-ch:
			if !ok {
				return
			}
			a.stateQueue.Put(block)
		}
	}
}

// Admit is the external entry point HTTP handlers (out of scope) would
// call, per SPEC_FULL §4.10. It delegates to admission.Gate and, on
// success, the proof is already enqueued onto the tx queue.
func (a *Aggregator) Admit(proof []byte, meta tx.SenderMeta) error {
	return a.Gate.Admit(proof, meta)
}

// Stop performs the cancellation sequence from spec §5: cancel the
// ProofGenerator (in-flight calls return false), cancel both queues so
// their consumers exit cleanly, then tear down the chain adapter.
func (a *Aggregator) Stop() {
	a.ProofGen.Cancel()
	a.txQueue.Cancel()
	a.stateQueue.Cancel()
	a.Chain.Close()
	if a.cancel != nil {
		a.cancel()
	}
	common.Log.Debugf("aggregator stopped")
}
