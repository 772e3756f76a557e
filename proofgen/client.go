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

// Package proofgen is the async client wrapper around the external
// circuit prover child process, per spec §4.4.
//
// Grounded on the teacher's Prover.Prove/Prover.Verify request shape
// (prover/prover.go) adapted from an in-process gnark call to an async
// child-process request/response, using the same ack/nak/cancel idiom as
// prover/consumer.go's NATS handler for the "in flight, may be cancelled"
// contract of spec §4.4. The child process itself, and the wire framing
// of requests/responses across it, has no pack precedent (every gnark use
// in the retrieved examples runs in-process) — os/exec and encoding/gob
// are the stdlib-idiomatic minimum for that IPC boundary (see DESIGN.md).
package proofgen

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"os/exec"
	"sync"

	"github.com/provideplatform/rollup-aggregator/common"
	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
)

// request is one unit of work sent to the persistent child process.
type request struct {
	Rollup *rollupbuilder.Rollup
}

// response is the child process's answer to a request.
type response struct {
	ProofBytes []byte
	Err        string
}

// Client is the ProofGenerator client, per spec §4.4. The underlying
// worker is a single persistent child process; Client serializes requests
// onto it the same way the teacher's consumer loops serialize onto a
// single NATS subscription.
//
// mu serializes access to enc/dec, and is held for the duration of a
// request/response round-trip (which can block in Decode for as long as
// the child takes to prove). stateMu guards running independently so
// Cancel can flip it and kill the child's context without waiting on a
// round-trip that only the context kill itself can unblock.
type Client struct {
	mu  sync.Mutex
	cmd *exec.Cmd
	enc *gob.Encoder
	dec *gob.Decoder

	cancel context.CancelFunc
	ctx    context.Context

	stateMu sync.Mutex
	running bool
}

// New starts the child process specified by command/args, ready to accept
// CreateProof calls.
func New(command string, args ...string) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open proof generator stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open proof generator stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start proof generator child process: %w", err)
	}

	return &Client{
		cmd:     cmd,
		enc:     gob.NewEncoder(stdin),
		dec:     gob.NewDecoder(bufio.NewReader(stdout)),
		ctx:     ctx,
		cancel:  cancel,
		running: true,
	}, nil
}

func (c *Client) isRunning() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.running
}

// CreateProof serializes a request for the given rollup witness onto the
// persistent child, per spec §4.4 createProof(rollup) -> Option<proofBytes>.
// Failure to prove, or cancellation, returns (nil, false) — it never
// returns an error the caller must distinguish from "no proof": spec §4.4
// says this never throws.
//
// c.mu is held for the full round-trip, including the blocking Decode —
// Cancel kills the child before it takes c.mu, so it can still unblock
// that Decode while this call is in flight.
func (c *Client) CreateProof(rollup *rollupbuilder.Rollup) ([]byte, bool) {
	if !c.isRunning() {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isRunning() {
		return nil, false
	}

	if err := c.enc.Encode(request{Rollup: rollup}); err != nil {
		common.Log.Warningf("failed to send rollup %d to proof generator; %s", rollup.RollupID, err.Error())
		return nil, false
	}

	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		common.Log.Warningf("failed to read proof generator response for rollup %d; %s", rollup.RollupID, err.Error())
		return nil, false
	}

	if resp.Err != "" {
		common.Log.Debugf("proof generator rejected rollup %d: %s", rollup.RollupID, resp.Err)
		return nil, false
	}

	return resp.ProofBytes, true
}

// Cancel aborts in-flight work; future CreateProof calls return (nil,
// false), per spec §4.4 cancel() and §5 ("Cancellation"). It kills the
// child before taking c.mu: a CreateProof call may be blocked holding c.mu
// inside Decode, and only killing the child via c.cancel() will unblock
// that read. running is guarded by the separate stateMu so this can proceed
// immediately; c.mu is taken only afterwards, to wait for the child to exit.
func (c *Client) Cancel() {
	c.stateMu.Lock()
	if !c.running {
		c.stateMu.Unlock()
		return
	}
	c.running = false
	c.stateMu.Unlock()

	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		_ = c.cmd.Wait()
	}
}
