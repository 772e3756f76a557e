package rollupdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"hash"
	"sync"

	"github.com/providenetwork/merkletree"
)

// rollupContent adapts one persisted Rollup history row into the
// merkletree.Content interface, the same shape as
// store/providers/dmt/content.go's treeContent adapter, so the audit
// accumulator can reuse the teacher's dense content-tree dependency
// instead of hand-rolling one.
type rollupContent struct {
	rollupID       uint64
	dataStartIndex uint64
	rollupRoot     []byte
}

func (c *rollupContent) CalculateHash() ([]byte, error) {
	h := sha256.New()
	var idBuf [16]byte
	binary.BigEndian.PutUint64(idBuf[0:8], c.rollupID)
	binary.BigEndian.PutUint64(idBuf[8:16], c.dataStartIndex)
	h.Write(idBuf[:])
	h.Write(c.rollupRoot)
	return h.Sum(nil), nil
}

func (c *rollupContent) Equals(other merkletree.Content) (bool, error) {
	h0, err := c.CalculateHash()
	if err != nil {
		return false, err
	}
	h1, err := other.CalculateHash()
	if err != nil {
		return false, err
	}
	return bytes.Equal(h0, h1), nil
}

// auditLog is a tamper-evident, full-rebuild accumulator over every
// inserted rollup history row. Unlike worldstate's nullifier/root trees,
// nothing derives a bit-exact path from this structure — only "did the
// root change" matters, which is exactly the contract
// providenetwork/merkletree (via store/providers/dmt) already provides.
type auditLog struct {
	mu       sync.Mutex
	tree     *merkletree.MerkleTree
	contents []merkletree.Content
}

func newAuditLog() *auditLog {
	return &auditLog{contents: make([]merkletree.Content, 0)}
}

func (a *auditLog) append(row *Rollup) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.contents = append(a.contents, &rollupContent{
		rollupID:       row.RollupID,
		dataStartIndex: row.DataStartIndex,
		rollupRoot:     []byte(row.RollupRoot),
	})

	tree, err := merkletree.NewTreeWithHashStrategy(a.contents, func() hash.Hash { return sha256.New() })
	if err != nil {
		return err
	}
	a.tree = tree
	return nil
}

func (a *auditLog) root() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tree == nil {
		return nil, errors.New("audit log contains no rollups yet")
	}
	return a.tree.MerkleRoot(), nil
}
