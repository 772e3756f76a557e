package providers

// GnarkCircuitIdentifierCubic gnark cubic circuit (smoke-test circuit, kept
// from the teacher's library for provider-wiring sanity checks)
const GnarkCircuitIdentifierCubic = "cubic"

// GnarkCircuitIdentifierMimc gnark mimc preimage circuit
const GnarkCircuitIdentifierMimc = "mimc"

// GnarkCircuitIdentifierBaselineRollup proves a rollup's new-leaf sub-root,
// per spec §4.8
const GnarkCircuitIdentifierBaselineRollup = "baseline_rollup"

// GnarkCircuitIdentifierJoinSplit is the join-split verifier circuit
// admission runs, per spec §4.6 step 4
const GnarkCircuitIdentifierJoinSplit = "join_split"

// ZKSnarkCircuitProviderGnark gnark zksnark circuit provider
const ZKSnarkCircuitProviderGnark = "gnark"

// ZKSnarkCircuitProviderZoKrates ZoKrates zksnark circuit provider
const ZKSnarkCircuitProviderZoKrates = "zokrates"

// ZKSnarkCircuitProvider provides a common interface to interact with zksnark circuits
type ZKSnarkCircuitProvider interface {
	Compile(argv ...interface{}) (interface{}, error)
	ComputeWitness(artifacts map[string]interface{}, args ...interface{}) (interface{}, error)
	// TODO: make optional ... ExportVerifier(verifyingKey string) (interface{}, error)
	GenerateProof(circuit interface{}, witness, provingKey string) (interface{}, error)
	Setup(circuit interface{}) (interface{}, error)
	// TODO: Verify() error
}
