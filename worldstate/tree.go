package worldstate

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
)

// leafSize is the fixed width, in bytes, of every leaf value stored in any
// of the three world state trees (data/nullifier/root), per spec.
const leafSize = 64

// zeroLeaf is what a "missing" leaf reads as.
var zeroLeaf = make([]byte, leafSize)

// digestFactory resolves the hash constructor used to build internal nodes,
// following the curve-keyed switch the teacher uses in
// store/providers/merkletree/store.go's hashFactory, generalized to fall
// back to sha256 when no curve is configured (matching
// store/providers/merkletree/memory.go's NewMerkleTree default).
func digestFactory(curveID *string) func() hash.Hash {
	if curveID == nil {
		return sha256.New
	}

	switch *curveID {
	case ecc.BN254.String():
		return gnarkhash.MIMC_BN254.New
	case ecc.BLS12_381.String():
		return gnarkhash.MIMC_BLS12_381.New
	case ecc.BLS12_377.String():
		return gnarkhash.MIMC_BLS12_377.New
	case ecc.BW6_761.String():
		return gnarkhash.MIMC_BW6_761.New
	case ecc.BLS24_315.String():
		return gnarkhash.MIMC_BLS24_315.New
	default:
		return sha256.New
	}
}

// tree is a fixed-depth binary Merkle tree with overlay-staged writes. It is
// the shared algorithmic core behind both the dense data tree and the
// sparse nullifier/root trees described in spec §3 — the only difference
// between "dense" and "sparse" use is whether the caller writes leaves at
// sequentially adjacent indexes or scattered ones; the tree itself never
// materializes untouched nodes, so both usages are equally cheap.
//
// Grounded on store/providers/merkletree/memory.go's node/sibling/propagate
// algorithm (createParent, getNodeSibling, propagateChange), generalized
// from that file's dynamically-growing level slices into a fixed-depth,
// lazily-zero-filled node map so the same code serves the sparse trees too.
type tree struct {
	mu sync.RWMutex

	depth  int
	digest hash.Hash

	zero [][]byte // zero[h] is the canonical value of any untouched node at height h

	// committed holds durable nodes, keyed by nodeKeyStr(height, index).
	// Only nodes on the path of some written leaf are stored (even when a
	// write leaves them equal to the zero value); everything else is implied.
	committed map[string][]byte
	// leaves holds durable raw (un-hashed) leaf values, keyed by index in
	// hexadecimal (leafKeyStr). This is what Store.Get returns.
	leaves map[string][]byte

	// overlay and leafOverlay stage uncommitted writes with the same
	// conventions. A non-nil, empty overlay means "no staged writes".
	overlay     map[string][]byte
	leafOverlay map[string][]byte
}

func newTree(depth int, curveID *string) *tree {
	t := &tree{
		depth:       depth,
		digest:      digestFactory(curveID)(),
		committed:   make(map[string][]byte),
		leaves:      make(map[string][]byte),
		overlay:     make(map[string][]byte),
		leafOverlay: make(map[string][]byte),
	}
	t.zero = computeZeroCache(t.digest, depth)
	return t
}

// computeZeroCache precomputes the value of an untouched node at every
// height, bottom-up, exactly as memory.go's propagateChange duplicates an
// odd leaf's hash to build its sibling — here every level above an
// all-zero leaf is an all-zero subtree by construction.
func computeZeroCache(digest hash.Hash, depth int) [][]byte {
	zero := make([][]byte, depth+1)
	zero[0] = hashLeaf(digest, zeroLeaf)
	for h := 1; h <= depth; h++ {
		zero[h] = hashPair(digest, zero[h-1], zero[h-1])
	}
	return zero
}

func hashLeaf(digest hash.Hash, value []byte) []byte {
	digest.Reset()
	digest.Write(value)
	return digest.Sum(nil)
}

func hashPair(digest hash.Hash, left, right []byte) []byte {
	digest.Reset()
	digest.Write(left)
	digest.Write(right)
	return digest.Sum(nil)
}

func nodeKeyStr(height int, index *big.Int) string {
	return fmt.Sprintf("%d:%s", height, index.Text(16))
}

func leafKeyStr(index *big.Int) string {
	return index.Text(16)
}

// nodeAt resolves a node's value, preferring the overlay, falling back to
// the committed store, falling back to the zero cache.
func (t *tree) nodeAt(height int, index *big.Int) []byte {
	key := nodeKeyStr(height, index)
	if v, ok := t.overlay[key]; ok {
		return v
	}
	if v, ok := t.committed[key]; ok {
		return v
	}
	return t.zero[height]
}

// leafAt resolves a raw leaf value, defaulting to the zero leaf.
func (t *tree) leafAt(index *big.Int) []byte {
	key := leafKeyStr(index)
	if v, ok := t.leafOverlay[key]; ok {
		return v
	}
	if v, ok := t.leaves[key]; ok {
		return v
	}
	return zeroLeaf
}

// put stages value at the given leaf index and propagates the change up to
// the root entirely within the overlay.
func (t *tree) put(index *big.Int, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index.Sign() < 0 || index.BitLen() > t.depth {
		return fmt.Errorf("key out of range for tree of depth %d: %s", t.depth, index.String())
	}
	if len(value) != leafSize {
		return fmt.Errorf("leaf value must be %d bytes, got %d", leafSize, len(value))
	}

	t.leafOverlay[leafKeyStr(index)] = value

	cur := new(big.Int).Set(index)
	node := hashLeaf(t.digest, value)
	t.overlay[nodeKeyStr(0, cur)] = node

	for h := 0; h < t.depth; h++ {
		parent := new(big.Int).Rsh(cur, 1)
		var sibling *big.Int
		isRight := cur.Bit(0) == 1
		if isRight {
			sibling = new(big.Int).Sub(cur, big.NewInt(1))
		} else {
			sibling = new(big.Int).Add(cur, big.NewInt(1))
		}

		siblingVal := t.nodeAt(h, sibling)

		var parentVal []byte
		if isRight {
			parentVal = hashPair(t.digest, siblingVal, node)
		} else {
			parentVal = hashPair(t.digest, node, siblingVal)
		}

		t.overlay[nodeKeyStr(h+1, parent)] = parentVal

		cur = parent
		node = parentVal
	}

	return nil
}

// get returns the raw leaf value at index, staged or committed.
func (t *tree) get(index *big.Int) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leafAt(index)
}

// leafAtCommitted resolves a raw leaf value from committed state only,
// never consulting leafOverlay, defaulting to the zero leaf.
func (t *tree) leafAtCommitted(index *big.Int) []byte {
	key := leafKeyStr(index)
	if v, ok := t.leaves[key]; ok {
		return v
	}
	return zeroLeaf
}

// getCommitted returns the raw leaf value at index, ignoring any staged
// overlay write.
func (t *tree) getCommitted(index *big.Int) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leafAtCommitted(index)
}

// root returns the tree's root hash, reflecting staged writes.
func (t *tree) root() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodeAt(t.depth, big.NewInt(0))
}

// HashPathPair is one level of a HashPath: the two sibling node values at a
// given height, ordered [even-branch, odd-branch] by position — not
// "self"/"other", since RollupBuilder needs to read a subtree root directly
// off the pair by position (spec §4.1, §4.8 step 3), and proof circuits
// (zkp/lib/circuits/gnark/baseline_rollup.go's Proofs/Helpers convention)
// need the sibling and the path bit separately.
type HashPathPair [2][]byte

// HashPath is depth+1 pairs, ordered from the leaf level (0) to one level
// above the deepest sibling pair below the root (depth), per spec §4.1.
type HashPath []HashPathPair

// hashPath computes the hash path for index; entries 0..depth-1 are the
// real sibling pairs along the path, entry depth is the degenerate
// [root, root] pair that lets callers uniformly index depth+1 entries even
// though the root itself has no sibling.
func (t *tree) hashPath(index *big.Int) HashPath {
	t.mu.RLock()
	defer t.mu.RUnlock()

	path := make(HashPath, t.depth+1)

	for h := 0; h < t.depth; h++ {
		anc := new(big.Int).Rsh(index, uint(h+1))
		even := new(big.Int).Lsh(anc, 1)
		odd := new(big.Int).Add(even, big.NewInt(1))
		path[h] = HashPathPair{t.nodeAt(h, even), t.nodeAt(h, odd)}
	}

	root := t.nodeAt(t.depth, big.NewInt(0))
	path[t.depth] = HashPathPair{root, root}

	return path
}

// subRoot reads the subtree root that index's ancestor chain passes
// through at the given height, per the rollupRoot extraction formula in
// spec §4.8 step 3: pair[height][(index>>height)&1].
func (p HashPath) subRoot(index *big.Int, height int) []byte {
	bit := new(big.Int).Rsh(index, uint(height))
	return p[height][bit.Bit(0)]
}

// commit durably promotes every staged write and clears the overlay.
func (t *tree) commit() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range t.overlay {
		t.committed[k] = v
	}
	for k, v := range t.leafOverlay {
		t.leaves[k] = v
	}
	t.overlay = make(map[string][]byte)
	t.leafOverlay = make(map[string][]byte)
}

// rollback discards every staged write.
func (t *tree) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.overlay = make(map[string][]byte)
	t.leafOverlay = make(map[string][]byte)
}
