package gnark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/accumulator/merkle"
	"github.com/consensys/gnark/std/hash/mimc"
)

// JoinSplitCircuit proves knowledge of two spendable notes committed under
// NoteTreeRoot, each authorizing a nullifier, and the construction of two
// new notes, the join-split verifier admission.Gate's Verifier runs (spec §4.6
// step 4 / §4.8's per-tx witness fields).
type JoinSplitCircuit struct {
	// note membership witnesses, one merkle path per spent note
	NoteProofs1, NoteHelpers1 []frontend.Variable
	NoteProofs2, NoteHelpers2 []frontend.Variable

	// preimages the circuit must know to derive Nullifier1/Nullifier2 from
	// the spent notes without revealing which leaves they are
	NullifierPreimage1 frontend.Variable
	NullifierPreimage2 frontend.Variable

	NoteTreeRoot frontend.Variable `gnark:",public"`
	Nullifier1   frontend.Variable `gnark:",public"`
	Nullifier2   frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints: both spent notes are present
// under NoteTreeRoot, and each nullifier is the MiMC hash of its
// corresponding spend preimage.
func (circuit *JoinSplitCircuit) Define(curveID ecc.ID, cs *frontend.ConstraintSystem) error {
	hFunc, err := mimc.NewMiMC("seed", curveID)
	if err != nil {
		return err
	}

	merkle.VerifyProof(cs, hFunc, circuit.NoteTreeRoot, circuit.NoteProofs1, circuit.NoteHelpers1)
	merkle.VerifyProof(cs, hFunc, circuit.NoteTreeRoot, circuit.NoteProofs2, circuit.NoteHelpers2)

	hFunc.Write(circuit.NullifierPreimage1)
	cs.AssertIsEqual(circuit.Nullifier1, hFunc.Sum())

	hFunc.Write(circuit.NullifierPreimage2)
	cs.AssertIsEqual(circuit.Nullifier2, hFunc.Sum())

	return nil
}
