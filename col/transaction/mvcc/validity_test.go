package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinycol/col/table"
)

// mapOracle resolves ids from a fixed table; missing ids are uncommitted.
type mapOracle map[uint64]uint64

func (m mapOracle) Resolve(txnID uint64) (uint64, bool) {
	cid, ok := m[txnID]
	return cid, ok
}

func fiveRows(t *testing.T) *table.Table {
	s := table.NewSchema(table.Column{Name: "a", Type: table.TypeInteger}, table.Column{Name: "b", Type: table.TypeString})
	tbl, err := table.FromRows(s, []table.Row{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}, {5, "e"}})
	require.NoError(t, err)
	return tbl
}

func TestVisibleSelfCommitted(t *testing.T) {
	v := Validity{Begin: 5, End: Unbounded}
	assert.False(t, Visible(v, 4, SelfCommitted))
	assert.True(t, Visible(v, 5, SelfCommitted))
	assert.True(t, Visible(v, 500, SelfCommitted))

	bounded := Validity{Begin: 5, End: 8}
	assert.True(t, Visible(bounded, 7, SelfCommitted))
	assert.False(t, Visible(bounded, 8, SelfCommitted))
	assert.Equal(t, "[5, 8)", bounded.String())
	assert.Equal(t, "[5, inf)", v.String())
}

func TestVisibleWithOracle(t *testing.T) {
	oracle := mapOracle{7: 2}
	// Written by txn 7 which committed with commit id 2.
	assert.False(t, Visible(Validity{Begin: 7, End: Unbounded}, 1, oracle))
	assert.True(t, Visible(Validity{Begin: 7, End: Unbounded}, 2, oracle))
	// Written by txn 9 which never committed.
	assert.False(t, Visible(Validity{Begin: 9, End: Unbounded}, 100, oracle))
}

func TestGenerateValidityTable(t *testing.T) {
	vt := GenerateValidityTable(fiveRows(t), 42)
	require.Len(t, vt.Validity, 5)
	for _, v := range vt.Validity {
		assert.Equal(t, Validity{Begin: 42, End: Unbounded}, v)
	}
	assert.Equal(t, uint64(0), vt.VisibleRows(41, SelfCommitted).GetCardinality())
	assert.Equal(t, uint64(5), vt.VisibleRows(42, SelfCommitted).GetCardinality())
}

func TestVisibleRowsMixed(t *testing.T) {
	tbl := fiveRows(t)
	validity := []Validity{
		{Begin: 1, End: Unbounded},
		{Begin: 2, End: Unbounded},
		{Begin: 2, End: Unbounded},
		{Begin: 3, End: Unbounded},
		{Begin: 1, End: Unbounded},
	}
	vt, err := NewVersionedTable(tbl, validity)
	require.NoError(t, err)

	oracle := mapOracle{1: 1, 2: 3}
	assert.Equal(t, []uint32{0, 4}, vt.VisibleRows(1, oracle).ToArray())
	assert.Equal(t, []uint32{0, 1, 2, 4}, vt.VisibleRows(3, oracle).ToArray())
	// Txn 3 sees its own uncommitted row.
	assert.Equal(t, []uint32{0, 3, 4}, vt.VisibleRowsFor(1, 3, oracle).ToArray())

	_, err = NewVersionedTable(tbl, validity[:2])
	assert.Error(t, err)
}
