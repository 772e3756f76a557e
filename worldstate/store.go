/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package worldstate

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/rollup-aggregator/common"
)

// tree identifiers, per spec §3.
const (
	TreeData      = 0
	TreeNullifier = 1
	TreeRoot      = 2
)

// NullifierSpent is the sentinel value a nullifier leaf is set to once
// spent; final byte = 1, per spec §3.
var NullifierSpent = func() []byte {
	b := make([]byte, leafSize)
	b[leafSize-1] = 1
	return b
}()

// RootKnown is the sentinel value a root-tree leaf is set to once the
// data-tree root it keys is known, per spec §3.
var RootKnown = NullifierSpent

// Store is the replicated Merkle world state: three fixed-depth trees
// (data, nullifier, root-of-roots), overlay-staged and single-writer, per
// spec §3/§4.1.
//
// Grounded on store/providers/merkletree/store.go's DurableMerkleTree
// (gorm-backed persistence of an in-memory tree) generalized to own three
// trees behind one overlay/commit/rollback boundary, since spec §4.1
// requires atomic commit/rollback across the whole world state rather than
// per-tree persistence.
type Store struct {
	ID uuid.UUID `sql:"-"`

	mu    sync.Mutex
	db    *gorm.DB
	trees [3]*tree

	dataSize uint64 // committed size(0); staged increments tracked separately
	staged   uint64
}

// rootTreeDepth is the minimum depth of the root tree: its keys are the low
// 16 bytes (128 bits) of a data-tree root, see Low16.
const rootTreeDepth = 128

// New constructs a Store whose data and nullifier trees have the given fixed
// depth and whose root tree has that depth or rootTreeDepth, whichever is
// larger. Each commit's per-tree root and data size are recorded in db; the
// tree nodes themselves are held in memory only.
func New(db *gorm.DB, depth int, curveID *string) *Store {
	id, _ := uuid.NewV4()

	rootDepth := depth
	if rootDepth < rootTreeDepth {
		rootDepth = rootTreeDepth
	}

	s := &Store{
		ID: id,
		db: db,
		trees: [3]*tree{
			newTree(depth, curveID),
			newTree(depth, curveID),
			newTree(rootDepth, curveID),
		},
	}

	s.dataSize = s.loadSize()
	return s
}

func (s *Store) treeAt(treeID int) (*tree, error) {
	if treeID < 0 || treeID > 2 {
		return nil, fmt.Errorf("invalid tree id: %d", treeID)
	}
	return s.trees[treeID], nil
}

// Size returns the number of leaves in the tree, committed plus staged, per
// spec §4.1 size(treeId). Only meaningful for the dense data tree; invariant I1
// requires it be monotonically non-decreasing across commits.
func (s *Store) Size(treeID int) (uint64, error) {
	if treeID != TreeData {
		return 0, fmt.Errorf("size is only tracked for the data tree")
	}
	return atomic.LoadUint64(&s.dataSize) + atomic.LoadUint64(&s.staged), nil
}

// Root returns the 32-byte root of the given tree, reflecting staged
// writes, per spec §4.1 root(treeId).
func (s *Store) Root(treeID int) ([]byte, error) {
	t, err := s.treeAt(treeID)
	if err != nil {
		return nil, err
	}
	return t.root(), nil
}

// Get returns the 64-byte leaf value at key, or the all-zero leaf if
// unset, per spec §4.1 get(treeId, key).
func (s *Store) Get(treeID int, key *big.Int) ([]byte, error) {
	t, err := s.treeAt(treeID)
	if err != nil {
		return nil, err
	}
	return t.get(key), nil
}

// GetCommitted returns the 64-byte leaf value at key from committed state
// only, never consulting the overlay, per spec §4.6 / §5 O3 ("admission
// reads are against the committed world state"). RollupBuilder.Build
// stages puts to these same trees and only rolls back once it finishes;
// admission must use this instead of Get so a build running concurrently
// can never cause a staged-but-not-yet-committed write to be visible to an
// admission check.
func (s *Store) GetCommitted(treeID int, key *big.Int) ([]byte, error) {
	t, err := s.treeAt(treeID)
	if err != nil {
		return nil, err
	}
	return t.getCommitted(key), nil
}

// Put stages a leaf write at key in the given tree's overlay, per spec
// §4.1 put(treeId, key, value). Writes to the data tree at a previously
// unwritten index beyond the current staged size advance the staged size
// (invariant I1).
func (s *Store) Put(treeID int, key *big.Int, value []byte) error {
	t, err := s.treeAt(treeID)
	if err != nil {
		return err
	}
	if err := t.put(key, value); err != nil {
		return err
	}

	if treeID == TreeData {
		s.mu.Lock()
		next := atomic.LoadUint64(&s.dataSize) + atomic.LoadUint64(&s.staged)
		if key.IsUint64() && key.Uint64() >= next {
			atomic.AddUint64(&s.staged, key.Uint64()-next+1)
		}
		s.mu.Unlock()
	}

	return nil
}

// GetHashPath returns the depth+1-entry hash path for key in the given
// tree, reflecting staged writes, per spec §4.1 getHashPath(treeId, key).
func (s *Store) GetHashPath(treeID int, key *big.Int) (HashPath, error) {
	t, err := s.treeAt(treeID)
	if err != nil {
		return nil, err
	}
	return t.hashPath(key), nil
}

// Commit atomically promotes every staged overlay write across all three
// trees, per spec §4.1 commit(), then records each tree's post-commit root
// (and the data tree's size) in db. Persistence follows the
// teacher's raw-SQL row-per-hash idiom
// (store/providers/merkletree/store.go, store/providers/smt/store.go),
// generalized to one insert per tree recording its post-commit root.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.trees {
		t.commit()
	}
	atomic.AddUint64(&s.dataSize, atomic.SwapUint64(&s.staged, 0))

	if s.db == nil {
		return nil
	}

	for treeID, t := range s.trees {
		root := t.root()
		var size uint64
		if treeID == TreeData {
			size = atomic.LoadUint64(&s.dataSize)
		}
		result := s.db.Exec(
			"INSERT INTO world_state_commits (store_id, tree_id, root, size) VALUES (?, ?, ?, ?)",
			s.ID, treeID, hex.EncodeToString(root), size,
		)
		if result.Error != nil {
			common.Log.Warningf("failed to persist world state commit for tree %d; %s", treeID, result.Error.Error())
			return result.Error
		}
	}

	return nil
}

// Rollback discards every staged overlay write across all three trees, per
// spec §4.1 rollback(). Used by RollupBuilder (§4.8 step 5) to produce a
// witness without materializing it.
func (s *Store) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.trees {
		t.rollback()
	}
	atomic.StoreUint64(&s.staged, 0)
}

// loadSize reads the data tree's committed leaf count off the most recent
// world_state_commits row for this store, per spec §3 I1 (restart replay
// must resume from the actual committed size, not the number of commits
// that produced it — a commit can add any number of leaves).
func (s *Store) loadSize() uint64 {
	if s.db == nil {
		return 0
	}

	var size uint64
	row := s.db.Raw(
		"SELECT size FROM world_state_commits WHERE store_id = ? AND tree_id = ? ORDER BY created_at DESC LIMIT 1",
		s.ID, TreeData,
	).Row()
	if row != nil {
		_ = row.Scan(&size)
	}
	return size
}

// Low16 extracts the low 16 bytes of a 32-byte data-tree root, used as the
// root tree's key, per spec §3.
func Low16(root []byte) *big.Int {
	if len(root) > 16 {
		root = root[len(root)-16:]
	}
	return new(big.Int).SetBytes(root)
}

// RollupRootHeight returns log2(rollupSize)+1, the height at which a
// HashPath entry gives the sub-root spanning exactly a rollup's 2*rollupSize
// new data-tree leaves, per spec §4.8 step 3.
func RollupRootHeight(rollupSize int) int {
	return common.Log2(rollupSize) + 1
}

// RollupRoot reads the sub-root spanning a rollup's new leaves out of a
// post-apply data-tree HashPath, per spec §4.8 step 3:
// rollupRoot = newDataPath[rollupRootHeight][(dataStartIndex/(2*rollupSize)) mod 2].
func RollupRoot(path HashPath, dataStartIndex uint64, rollupSize int) []byte {
	height := RollupRootHeight(rollupSize)
	index := new(big.Int).SetUint64(dataStartIndex)
	return path.subRoot(index, height)
}
