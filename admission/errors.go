package admission

import "errors"

// Error kinds, by provenance, per spec §7.
var (
	ErrMalformedProof  = errors.New("malformed proof")
	ErrNullifierExists = errors.New("nullifier already exists")
	ErrUnknownNoteRoot = errors.New("merkle root does not exist")
	ErrVerifierFailed  = errors.New("proof verification failed")
)
