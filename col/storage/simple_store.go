package storage

import (
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
)

// SimpleStore is a Store whose delta starts out as a validity-tagged table, as produced by insert-only bulk loads.
// It takes appends and merges like any other Store.
type SimpleStore struct {
	*Store
	source *mvcc.VersionedTable
}

// NewSimpleStore builds a store whose delta holds the rows of vt with their validity entries. opts are applied as in
// New; a nil Oracle treats every transaction id as committed at itself until the first Append binds the store.
func NewSimpleStore(vt *mvcc.VersionedTable, opts Options) (*SimpleStore, error) {
	s := newStore(vt.Schema(), nil, opts)
	b := table.NewBuilder(vt.Schema(), vt.Len())
	b.AppendCoerced(vt.Rows())
	s.builder = b
	s.validity = append([]mvcc.Validity(nil), vt.Validity...)
	s.publishLocked(nil)
	if err := s.seedKeys(vt); err != nil {
		return nil, err
	}
	return &SimpleStore{Store: s, source: vt}, nil
}

// Table returns the validity-tagged table the store was built from.
func (s *SimpleStore) Table() *mvcc.VersionedTable {
	return s.source
}
