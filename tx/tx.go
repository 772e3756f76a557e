// Package tx holds the wire-level transaction types shared across
// admission, batching and rollup construction, per spec §3.
package tx

import (
	"math/big"
	"time"

	"github.com/provideplatform/rollup-aggregator/fees"
)

// JoinSplitProof is an admitted client proof plus its extracted fields,
// per spec §3. Its lifetime is created on receipt, destroyed after the
// batch containing it is submitted or dropped.
type JoinSplitProof struct {
	TxType      fees.TxType
	Proof       []byte
	Nullifier1  *big.Int
	Nullifier2  *big.Int
	NewNote1    []byte // 64 bytes
	NewNote2    []byte // 64 bytes
	NoteTreeRoot []byte // 32 bytes
	ViewingKey1 []byte
	ViewingKey2 []byte
	AssetID     string
	Fee         *big.Int
}

// SenderMeta carries per-admission sender metadata, per spec §3 ("Tx
// admission record").
type SenderMeta struct {
	IP     string
	Origin string
}

// AdmissionRecord is the durable record of an admitted (or rejected) tx,
// per spec §3. Second-class marks a tx admitted under relaxed conditions
// (e.g. during an escape-hatch window, see SPEC_FULL §7).
type AdmissionRecord struct {
	TxID        [32]byte
	ProofBytes  []byte
	Sender      SenderMeta
	SecondClass bool
	ReceivedAt  time.Time
}
