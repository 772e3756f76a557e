package rollupdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRollupIDStartsAtZero(t *testing.T) {
	db := New(nil)
	assert.Equal(t, uint64(0), db.NextRollupID())
}

func TestInsertAdvancesNextRollupID(t *testing.T) {
	db := New(nil)
	require.NoError(t, db.Insert(0, 0, []byte{0x01}, nil))
	assert.Equal(t, uint64(1), db.NextRollupID())
}

func TestInsertRejectsOutOfOrder(t *testing.T) {
	db := New(nil)
	err := db.Insert(5, 0, []byte{0x01}, nil)
	assert.Error(t, err)
}

func TestAuditRootChangesAsRollupsAreInserted(t *testing.T) {
	db := New(nil)
	_, err := db.AuditRoot()
	assert.Error(t, err, "empty audit log has no root yet")

	require.NoError(t, db.Insert(0, 0, []byte{0x01}, nil))
	root1, err := db.AuditRoot()
	require.NoError(t, err)

	require.NoError(t, db.Insert(1, 2, []byte{0x02}, nil))
	root2, err := db.AuditRoot()
	require.NoError(t, err)

	assert.NotEqual(t, root1, root2)
}
