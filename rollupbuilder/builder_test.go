package rollupbuilder

import (
	"math/big"
	"testing"

	"github.com/provideplatform/rollup-aggregator/tx"
	"github.com/provideplatform/rollup-aggregator/worldstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRollupDB struct{ next uint64 }

func (f *fakeRollupDB) NextRollupID() uint64 { return f.next }

func leaf(b byte) []byte {
	v := make([]byte, 64)
	v[0] = b
	return v
}

func TestBuildLeavesWorldStateUnchanged(t *testing.T) {
	state := worldstate.New(nil, 16, nil)
	b := &Builder{State: state, RollupDB: &fakeRollupDB{}, RollupSize: 2}

	rootBefore, _ := state.Root(worldstate.TreeData)
	sizeBefore, _ := state.Size(worldstate.TreeData)

	batch := []*tx.JoinSplitProof{
		{
			Proof:        []byte("proof-1"),
			Nullifier1:   big.NewInt(1),
			Nullifier2:   big.NewInt(2),
			NewNote1:     leaf(1),
			NewNote2:     leaf(2),
			NoteTreeRoot: make([]byte, 32),
			ViewingKey1:  []byte("vk1"),
			ViewingKey2:  []byte("vk2"),
		},
	}

	rollup, err := b.Build(batch)
	require.NoError(t, err)
	assert.NotNil(t, rollup)

	rootAfter, _ := state.Root(worldstate.TreeData)
	sizeAfter, _ := state.Size(worldstate.TreeData)

	assert.Equal(t, rootBefore, rootAfter, "Build must leave world state byte-for-byte unchanged (spec §8 property)")
	assert.Equal(t, sizeBefore, sizeAfter)
}

func TestBuildProducesDataStartIndexZeroOnEmptyState(t *testing.T) {
	state := worldstate.New(nil, 16, nil)
	b := &Builder{State: state, RollupDB: &fakeRollupDB{}, RollupSize: 2}

	batch := []*tx.JoinSplitProof{{
		Proof:        []byte("proof-1"),
		Nullifier1:   big.NewInt(1),
		Nullifier2:   big.NewInt(2),
		NewNote1:     leaf(1),
		NewNote2:     leaf(2),
		NoteTreeRoot: make([]byte, 32),
	}}

	rollup, err := b.Build(batch)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rollup.DataStartIndex)
	rootAfter, _ := state.Root(worldstate.TreeData)
	assert.Equal(t, rollup.OldDataRoot, rootAfter, "rollback must restore the pre-apply root")
	assert.NotEqual(t, rollup.OldDataRoot, rollup.NewDataRoot, "the returned old/new roots are the transient snapshot/apply pair")
}

func TestBuildAbortsWholeBatchOnDoubleSpend(t *testing.T) {
	state := worldstate.New(nil, 16, nil)
	b := &Builder{State: state, RollupDB: &fakeRollupDB{}, RollupSize: 4}

	shared := big.NewInt(7)
	batch := []*tx.JoinSplitProof{
		{Proof: []byte("a"), Nullifier1: shared, Nullifier2: big.NewInt(100), NewNote1: leaf(1), NewNote2: leaf(2), NoteTreeRoot: make([]byte, 32)},
		{Proof: []byte("b"), Nullifier1: shared, Nullifier2: big.NewInt(101), NewNote1: leaf(3), NewNote2: leaf(4), NoteTreeRoot: make([]byte, 32)},
	}

	rootBefore, _ := state.Root(worldstate.TreeData)

	_, err := b.Build(batch)
	assert.Error(t, err, "second put at an already-spent nullifier must abort the whole batch")

	rootAfter, _ := state.Root(worldstate.TreeData)
	assert.Equal(t, rootBefore, rootAfter, "an aborted batch must still leave world state unchanged")
}

func TestBuildRejectsOversizedBatch(t *testing.T) {
	state := worldstate.New(nil, 16, nil)
	b := &Builder{State: state, RollupDB: &fakeRollupDB{}, RollupSize: 1}

	batch := []*tx.JoinSplitProof{{}, {}}
	_, err := b.Build(batch)
	assert.Error(t, err)
}
