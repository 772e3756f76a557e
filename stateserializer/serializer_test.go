package stateserializer

import (
	"math/big"
	"testing"

	"github.com/provideplatform/rollup-aggregator/batch"
	"github.com/provideplatform/rollup-aggregator/chain"
	"github.com/provideplatform/rollup-aggregator/queue"
	"github.com/provideplatform/rollup-aggregator/rollupbuilder"
	"github.com/provideplatform/rollup-aggregator/worldstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRollupDB struct{ next uint64 }

func (f *fakeRollupDB) NextRollupID() uint64 { return f.next }

type fakeSubmitter struct {
	ok      bool
	submits []*rollupbuilder.Rollup
}

func (f *fakeSubmitter) Submit(rollup *rollupbuilder.Rollup) bool {
	f.submits = append(f.submits, rollup)
	return f.ok
}

func leaf(b byte) []byte {
	v := make([]byte, 64)
	v[0] = b
	return v
}

func newFixtureSerializer(submitter RollupSubmitter) (*Serializer, *worldstate.Store) {
	state := worldstate.New(nil, 16, nil)
	builder := &rollupbuilder.Builder{State: state, RollupDB: &fakeRollupDB{}, RollupSize: 4}
	return &Serializer{
		State:      state,
		Builder:    builder,
		Submitter:  submitter,
		StateQueue: queue.New(8),
	}, state
}

func TestHandleBatchReadyBuildsAndSubmits(t *testing.T) {
	submitter := &fakeSubmitter{ok: true}
	s, _ := newFixtureSerializer(submitter)

	b := batch.Batch{
		{
			Proof:        []byte("p1"),
			Nullifier1:   big.NewInt(1),
			Nullifier2:   big.NewInt(2),
			NewNote1:     leaf(1),
			NewNote2:     leaf(2),
			NoteTreeRoot: make([]byte, 32),
		},
	}

	s.handleBatchReady(batch.BatchReady{Batch: b})

	require.Len(t, submitter.submits, 1)
	assert.Equal(t, uint64(0), submitter.submits[0].DataStartIndex)
}

func TestHandleBatchReadyDropsOnBuildFailure(t *testing.T) {
	submitter := &fakeSubmitter{ok: true}
	s, _ := newFixtureSerializer(submitter)

	oversized := batch.Batch{{}, {}, {}, {}, {}}
	s.handleBatchReady(batch.BatchReady{Batch: oversized})

	assert.Empty(t, submitter.submits, "an oversized batch must never reach the submitter")
}

func TestHandleBatchReadyDropsOnSubmitFailure(t *testing.T) {
	submitter := &fakeSubmitter{ok: false}
	s, state := newFixtureSerializer(submitter)

	sizeBefore, _ := state.Size(worldstate.TreeData)

	b := batch.Batch{{
		Proof:        []byte("p1"),
		Nullifier1:   big.NewInt(1),
		Nullifier2:   big.NewInt(2),
		NewNote1:     leaf(1),
		NewNote2:     leaf(2),
		NoteTreeRoot: make([]byte, 32),
	}}
	s.handleBatchReady(batch.BatchReady{Batch: b})

	sizeAfter, _ := state.Size(worldstate.TreeData)
	assert.Equal(t, sizeBefore, sizeAfter, "a failed proof/submission must never mutate world state")
}

func TestHandleBlockAppliesDataEntriesAndNullifiersThenCommits(t *testing.T) {
	s, state := newFixtureSerializer(&fakeSubmitter{ok: true})

	block := &chain.Block{
		RollupID:       1,
		DataStartIndex: 0,
		NumDataEntries: 2,
		DataEntries:    [][]byte{leaf(1), leaf(2)},
		Nullifiers:     [][]byte{big.NewInt(7).Bytes()},
	}

	s.handleBlock(block)

	size, err := state.Size(worldstate.TreeData)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)

	spent, err := state.Get(worldstate.TreeNullifier, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, worldstate.NullifierSpent, spent)

	root, err := state.Root(worldstate.TreeData)
	require.NoError(t, err)
	known, err := state.Get(worldstate.TreeRoot, worldstate.Low16(root))
	require.NoError(t, err)
	assert.Equal(t, worldstate.RootKnown, known)
}

func TestHandleBlockPadsWhenFewerEntriesThanDeclared(t *testing.T) {
	s, state := newFixtureSerializer(&fakeSubmitter{ok: true})

	block := &chain.Block{
		RollupID:       1,
		DataStartIndex: 0,
		NumDataEntries: 4,
		DataEntries:    [][]byte{leaf(1), leaf(2)},
	}

	s.handleBlock(block)

	size, err := state.Size(worldstate.TreeData)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size, "padding the last declared index must advance the committed size to numDataEntries")
}

func TestRunExitsCleanlyOnQueueCancel(t *testing.T) {
	s, _ := newFixtureSerializer(&fakeSubmitter{ok: true})

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	s.StateQueue.Cancel()
	<-done
}
