package proofgen

import (
	"context"
	"encoding/gob"
	"io"
	"testing"

	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient wires a Client directly against in-memory pipes, bypassing
// the exec.Cmd child process boundary so CreateProof/Cancel semantics can
// be tested without spawning a real prover binary.
func newTestClient(t *testing.T) (*Client, *gob.Decoder, *gob.Encoder) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		enc:     gob.NewEncoder(reqW),
		dec:     gob.NewDecoder(respR),
		ctx:     ctx,
		cancel:  cancel,
		running: true,
	}
	c.cmd = nil

	serverDec := gob.NewDecoder(reqR)
	serverEnc := gob.NewEncoder(respW)

	return c, serverDec, serverEnc
}

func TestCreateProofReturnsProofOnSuccess(t *testing.T) {
	c, serverDec, serverEnc := newTestClient(t)

	go func() {
		var req request
		require.NoError(t, serverDec.Decode(&req))
		require.NoError(t, serverEnc.Encode(response{ProofBytes: []byte("proof")}))
	}()

	proof, ok := c.CreateProof(&rollupbuilder.Rollup{RollupID: 1})
	assert.True(t, ok)
	assert.Equal(t, []byte("proof"), proof)
}

func TestCreateProofReturnsFalseNeverErrorsOnFailure(t *testing.T) {
	c, serverDec, serverEnc := newTestClient(t)

	go func() {
		var req request
		require.NoError(t, serverDec.Decode(&req))
		require.NoError(t, serverEnc.Encode(response{Err: "invalid proof"}))
	}()

	proof, ok := c.CreateProof(&rollupbuilder.Rollup{RollupID: 1})
	assert.False(t, ok)
	assert.Nil(t, proof)
}

func TestCreateProofAfterCancelReturnsFalse(t *testing.T) {
	c, _, _ := newTestClient(t)
	c.running = false

	proof, ok := c.CreateProof(&rollupbuilder.Rollup{RollupID: 1})
	assert.False(t, ok)
	assert.Nil(t, proof)
}
