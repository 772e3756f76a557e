package gnark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/accumulator/merkle"
	"github.com/consensys/gnark/std/hash/mimc"
)

// BaselineRollupCircuit proves that RootHash is the data-tree root reached
// by walking Proofs/Helpers from a rollup's new leaves, the in-circuit
// counterpart of worldstate.HashPath's even/odd branch-pair shape.
type BaselineRollupCircuit struct {
	Proofs, Helpers []frontend.Variable
	RootHash        frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints.
func (circuit *BaselineRollupCircuit) Define(curveID ecc.ID, cs *frontend.ConstraintSystem) error {
	mimc, err := mimc.NewMiMC("seed", curveID)
	if err != nil {
		return err
	}

	merkle.VerifyProof(cs, mimc, circuit.RootHash, circuit.Proofs, circuit.Helpers)

	return nil
}
