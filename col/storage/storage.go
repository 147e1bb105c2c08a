package storage

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
)

// Storage is what every loadable table offers to readers: a schema, a physical row count and snapshot reads.
// Store, SimpleStore and PlainTable implement it.
type Storage interface {
	Schema() *table.Schema
	// Len is the number of physical rows, visible or not.
	Len() int
	SnapshotRead(snapshot uint64) *RowIterator
}

// AsStore returns the mutable store behind s, if there is one. A PlainTable has none and takes no appends.
func AsStore(s Storage) (*Store, bool) {
	switch st := s.(type) {
	case *Store:
		return st, true
	case *SimpleStore:
		return st.Store, true
	}
	return nil, false
}

// PlainTable is a raw table without transaction metadata. Every row is visible at every snapshot.
type PlainTable struct {
	t *table.Table
}

func NewPlainTable(t *table.Table) *PlainTable {
	return &PlainTable{t: t}
}

func (p *PlainTable) Table() *table.Table {
	return p.t
}

func (p *PlainTable) Schema() *table.Schema {
	return p.t.Schema()
}

func (p *PlainTable) Len() int {
	return p.t.Len()
}

func (p *PlainTable) SnapshotRead(uint64) *RowIterator {
	vt := mvcc.GenerateValidityTable(p.t, mvcc.BootstrapTxnID)
	return newRowIterator([]*mvcc.VersionedTable{vt}, func(vt *mvcc.VersionedTable) *roaring.Bitmap {
		return allRows(vt.Len())
	})
}
