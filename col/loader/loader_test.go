package loader

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/storage"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/commands"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
)

func schema() *table.Schema {
	return table.NewSchema(
		table.Column{Name: "col_0", Type: table.TypeInteger},
		table.Column{Name: "col_1", Type: table.TypeString},
	)
}

func rows() []table.Row {
	return []table.Row{{1, "a"}, {2, "b"}, {3, "a"}, {4, "c"}}
}

func TestLoadDefault(t *testing.T) {
	s, err := Load(schema(), rows(), DefaultParams())
	require.NoError(t, err)
	store, ok := storage.AsStore(s)
	require.True(t, ok)
	assert.Equal(t, 4, store.MainSize())
	assert.Equal(t, 0, store.DeltaSize())
	assert.Len(t, store.Partitions(), 1)
	assert.False(t, store.Partitions()[0].Compressed())
	assert.Len(t, s.SnapshotRead(0).Rows(), 4)
}

func TestLoadCompressed(t *testing.T) {
	params := DefaultParams()
	params.Compressed = true
	store, err := LoadStore(schema(), rows(), params)
	require.NoError(t, err)
	main := store.Partitions()
	require.Len(t, main, 1)
	assert.True(t, main[0].Compressed())
	assert.Equal(t, 3, main[0].DictionarySize(1))
	assert.Equal(t, table.Row{int64(3), "a"}, store.SnapshotRead(0).Rows()[2])
}

func TestLoadReturnsMainTable(t *testing.T) {
	params := DefaultParams()
	params.ReturnsMainTable = true
	s, err := Load(schema(), rows(), params)
	require.NoError(t, err)
	plain, ok := s.(*storage.PlainTable)
	require.True(t, ok)
	assert.Equal(t, 4, plain.Len())
	_, ok = storage.AsStore(s)
	assert.False(t, ok)
}

func TestLoadWithoutStore(t *testing.T) {
	s, err := Load(schema(), rows(), Params{})
	require.NoError(t, err)
	_, ok := s.(*storage.PlainTable)
	assert.True(t, ok)
	assert.Equal(t, 4, s.SnapshotRead(0).Count())
}

func TestLoadInsertOnly(t *testing.T) {
	for _, wrap := range []bool{false, true} {
		params := DefaultParams()
		params.WrapAsStore = wrap
		params.InsertOnly = InsertOnly{Enabled: true, TxnID: 42}
		s, err := Load(schema(), rows(), params)
		require.NoError(t, err)
		simple, ok := s.(*storage.SimpleStore)
		require.True(t, ok)
		assert.Equal(t, 4, simple.Len())
		for _, v := range simple.Table().Validity {
			assert.Equal(t, uint64(42), v.Begin)
		}
		assert.Equal(t, 0, s.SnapshotRead(41).Count())
		assert.Equal(t, 4, s.SnapshotRead(42).Count())
	}
}

func TestInsertOnlyFiveRows(t *testing.T) {
	const txnID = 7
	five := append(rows(), table.Row{5, "e"})
	params := Params{InsertOnly: InsertOnly{Enabled: true, TxnID: txnID}}
	s, err := Load(schema(), five, params)
	require.NoError(t, err)
	simple := s.(*storage.SimpleStore)
	require.Len(t, simple.Table().Validity, 5)
	for _, v := range simple.Table().Validity {
		assert.Equal(t, mvcc.Validity{Begin: txnID, End: mvcc.Unbounded}, v)
	}
	assert.Equal(t, five[4][1], s.SnapshotRead(txnID).Rows()[4][1])
	assert.Len(t, s.SnapshotRead(txnID).Rows(), 5)
}

func TestInsertOnlyTakesInserts(t *testing.T) {
	m := txn.NewManager(config.TxnConfig{FirstTxnID: 1000})
	params := DefaultParams()
	params.InsertOnly = InsertOnly{Enabled: true, TxnID: 3}
	s, err := Load(schema(), rows(), params)
	require.NoError(t, err)
	store, ok := storage.AsStore(s)
	require.True(t, ok)

	ctx := m.BuildContext()
	n, err := commands.RunCommand(commands.NewInsertScan(ctx, store, []table.Row{{5, "e"}}), m)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	cid, err := commands.RunCommand(commands.NewCommit(ctx, []*storage.Store{store}, commands.CommitOptions{MergeAfterCommit: true}), m)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cid)

	// Loaded rows resolve to id 3 and the insert to commit id 1, so snapshot 3 sees both.
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 5, s.SnapshotRead(3).Count())
	assert.Equal(t, 1, s.SnapshotRead(1).Count())
	_, err = store.Merge()
	require.NoError(t, err)
	assert.Equal(t, 5, store.MainSize())
	assert.Equal(t, 5, s.SnapshotRead(3).Count())
}

func TestLoadDuplicateKeys(t *testing.T) {
	keyed, err := schema().WithKey("col_0")
	require.NoError(t, err)
	_, err = Load(keyed, []table.Row{{1, "a"}, {1, "b"}}, DefaultParams())
	require.Error(t, err)
	assert.True(t, txn.IsConflict(err))

	params := Params{InsertOnly: InsertOnly{Enabled: true, TxnID: 1}}
	_, err = Load(keyed, []table.Row{{1, "a"}, {1, "b"}}, params)
	assert.True(t, txn.IsConflict(err))
}

func TestLoadSchemaMismatch(t *testing.T) {
	_, err := Load(schema(), []table.Row{{1, "a"}, {"two", "b"}}, DefaultParams())
	require.Error(t, err)
	assert.Equal(t, table.ErrSchemaMismatch, errors.Cause(err))
}

func TestLoadedStoreTakesInserts(t *testing.T) {
	store, err := LoadStore(schema(), rows(), DefaultParams())
	require.NoError(t, err)
	m := txn.NewManager(config.NewTestConfig().Txn)

	ctx := m.BuildContext()
	require.NoError(t, store.Append([]table.Row{{99, "z"}}, ctx))
	assert.Equal(t, 4, store.SnapshotRead(m.LastCommitID()).Count())
	_, err = m.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, store.SnapshotRead(m.LastCommitID()).Count())
	assert.Equal(t, 4, store.SnapshotRead(0).Count())
}
