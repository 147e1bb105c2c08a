package loader

import (
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/col/storage"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
	"github.com/pingcap-incubator/tinycol/log"
)

// InsertOnly tags every loaded row as written by TxnID and returns a SimpleStore holding them in its delta.
type InsertOnly struct {
	Enabled bool
	TxnID   uint64
}

type Params struct {
	InsertOnly InsertOnly
	// WrapAsStore wraps the loaded table in a Store and merges it once.
	WrapAsStore bool
	// Compressed dictionary-encodes the table when it is merged.
	Compressed bool
	// ReturnsMainTable returns the first main partition of the wrapped store as a PlainTable.
	ReturnsMainTable bool
	// Store holds the options of the wrapping store. Strategy and merger are always replaced by a logarithmic
	// strategy and a sequential merger honouring Compressed.
	Store storage.Options
}

func DefaultParams() Params {
	return Params{WrapAsStore: true, Store: storage.DefaultOptions()}
}

// Load builds a table of schema from rows and turns it into a storage as described by params.
func Load(schema *table.Schema, rows []table.Row, params Params) (storage.Storage, error) {
	t, err := table.FromRows(schema, rows)
	if err != nil {
		return nil, errors.Annotate(err, "load")
	}
	log.Debugf("loaded %d rows with %d columns", t.Len(), schema.Len())

	opts := params.Store
	opts.Strategy = storage.LogarithmicMergeStrategy{}
	opts.Merger = storage.SequentialHeapMerger{Compressed: params.Compressed}

	var store *storage.Store
	if params.WrapAsStore {
		store, err = storage.FromTable(t, opts)
		if err != nil {
			return nil, errors.Annotate(err, "load")
		}
		if _, err := store.Merge(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if params.InsertOnly.Enabled {
		if store != nil {
			t = mainTable(store)
		}
		simple, err := storage.NewSimpleStore(mvcc.GenerateValidityTable(t, params.InsertOnly.TxnID), opts)
		if err != nil {
			return nil, errors.Annotate(err, "load")
		}
		return simple, nil
	}
	if store == nil {
		return storage.NewPlainTable(t), nil
	}
	if params.ReturnsMainTable {
		return storage.NewPlainTable(mainTable(store)), nil
	}
	return store, nil
}

// LoadStore loads rows into a Store. params.WrapAsStore is forced and the other result kinds are turned off.
func LoadStore(schema *table.Schema, rows []table.Row, params Params) (*storage.Store, error) {
	params.WrapAsStore = true
	params.ReturnsMainTable = false
	params.InsertOnly.Enabled = false
	s, err := Load(schema, rows, params)
	if err != nil {
		return nil, err
	}
	store, ok := storage.AsStore(s)
	if !ok {
		return nil, errors.Errorf("load returned %T instead of a store", s)
	}
	return store, nil
}

func mainTable(s *storage.Store) *table.Table {
	parts := s.Partitions()
	if len(parts) == 0 {
		return table.Empty(s.Schema())
	}
	return parts[0].Table
}
