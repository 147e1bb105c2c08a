package commands

import (
	"github.com/pingcap-incubator/tinycol/col/storage"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
)

// InsertScan appends its input rows to a store within a transaction. The response is the number of rows inserted.
type InsertScan struct {
	CommandBase
	store *storage.Store
	rows  []table.Row
}

func NewInsertScan(ctx *txn.Context, store *storage.Store, rows []table.Row) *InsertScan {
	return &InsertScan{CommandBase: CommandBase{ctx: ctx}, store: store, rows: rows}
}

func (is *InsertScan) Name() string {
	return "insert"
}

func (is *InsertScan) Execute(*txn.Manager) (interface{}, error) {
	if err := is.store.Append(is.rows, is.ctx); err != nil {
		return nil, err
	}
	return len(is.rows), nil
}
