package admission

import (
	"math/big"
	"testing"

	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/worldstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	proof *tx.JoinSplitProof
	err   error
}

func (f *fakeParser) Parse(raw []byte) (*tx.JoinSplitProof, error) { return f.proof, f.err }

type fakeVerifier struct {
	ok  bool
	err error
}

func (f *fakeVerifier) Verify(p *tx.JoinSplitProof) (bool, error) { return f.ok, f.err }

func validProof() *tx.JoinSplitProof {
	return &tx.JoinSplitProof{
		Nullifier1:   big.NewInt(1),
		Nullifier2:   big.NewInt(2),
		NoteTreeRoot: make([]byte, 32),
	}
}

func newGateWithState(t *testing.T) (*Gate, *worldstate.Store) {
	state := worldstate.New(nil, 32, nil)

	key := worldstate.Low16(make([]byte, 32))
	require.NoError(t, state.Put(worldstate.TreeRoot, key, worldstate.RootKnown))
	require.NoError(t, state.Commit())

	return &Gate{
		State:    state,
		Parser:   &fakeParser{proof: validProof()},
		Verifier: &fakeVerifier{ok: true},
		TxQueue:  queue.New(8),
	}, state
}

func TestAdmitHappyPathEnqueues(t *testing.T) {
	gate, _ := newGateWithState(t)
	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, gate.TxQueue.Len())
}

func TestAdmitRejectsMalformedProof(t *testing.T) {
	gate, _ := newGateWithState(t)
	gate.Parser = &fakeParser{err: assert.AnError}
	err := gate.Admit([]byte("bad"), tx.SenderMeta{})
	assert.ErrorIs(t, err, ErrMalformedProof)
}

func TestAdmitRejectsSpentNullifier(t *testing.T) {
	gate, state := newGateWithState(t)
	require.NoError(t, state.Put(worldstate.TreeNullifier, big.NewInt(1), worldstate.NullifierSpent))
	require.NoError(t, state.Commit())

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	assert.ErrorIs(t, err, ErrNullifierExists)
}

func TestAdmitRejectsUnknownNoteRoot(t *testing.T) {
	gate, _ := newGateWithState(t)
	gate.Parser = &fakeParser{proof: &tx.JoinSplitProof{
		Nullifier1:   big.NewInt(10),
		Nullifier2:   big.NewInt(11),
		NoteTreeRoot: []byte("not a known root, 32 bytes long."),
	}}

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	assert.ErrorIs(t, err, ErrUnknownNoteRoot)
}

func TestAdmitRejectsFailedVerification(t *testing.T) {
	gate, _ := newGateWithState(t)
	gate.Verifier = &fakeVerifier{ok: false}

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	assert.ErrorIs(t, err, ErrVerifierFailed)
}

func TestAdmitWithNilRecorderAndEscapeHatchIsANoOp(t *testing.T) {
	gate, _ := newGateWithState(t)
	gate.Recorder = nil
	gate.EscapeHatchOpen = nil

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	require.NoError(t, err)
}

func TestAdmitMarksSecondClassWhenEscapeHatchOpen(t *testing.T) {
	gate, _ := newGateWithState(t)

	var checked bool
	gate.EscapeHatchOpen = func() bool {
		checked = true
		return true
	}

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	require.NoError(t, err)
	assert.True(t, checked)
	assert.Equal(t, 1, gate.TxQueue.Len())
}

func TestAdmitIgnoresStagedNullifierFromInFlightBuild(t *testing.T) {
	gate, state := newGateWithState(t)

	// simulate RollupBuilder.Build staging a write mid-rollup without
	// having committed it yet: admission must still see the committed
	// (unspent) nullifier, not the staged one.
	require.NoError(t, state.Put(worldstate.TreeNullifier, big.NewInt(1), worldstate.NullifierSpent))

	err := gate.Admit([]byte("proof"), tx.SenderMeta{})
	require.NoError(t, err)

	state.Rollback()
}

func TestNewRecorderWithNilDBIsANoOp(t *testing.T) {
	r := NewRecorder(nil)
	assert.NotPanics(t, func() {
		r.Record([]byte("proof"), tx.SenderMeta{IP: "127.0.0.1"}, true, "", false)
	})
}
