package chain

import "fmt"

// marshalSignature re-packs a standard 65-byte compact ECDSA signature
// (r||s||v) into the 96-byte record the on-chain rollup processor expects:
// r(32) || s(32) || 31 zero bytes || v(1). Bit-exact; compatibility with
// the deployed verifier is required (spec §4.3).
func marshalSignature(sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("expected 65-byte compact signature, got %d bytes", len(sig))
	}

	out := make([]byte, 96)
	copy(out[0:64], sig[0:64])
	// out[64:95] is already zero-valued
	out[95] = sig[64]
	return out, nil
}

// marshalSignatures concatenates the 96-byte padded form of every signature
// in order, per spec §4.3 ("Concatenate all per-tx padded signatures").
func marshalSignatures(sigs [][]byte) ([]byte, error) {
	out := make([]byte, 0, len(sigs)*96)
	for i, sig := range sigs {
		padded, err := marshalSignature(sig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal signature at index %d: %w", i, err)
		}
		out = append(out, padded...)
	}
	return out, nil
}
