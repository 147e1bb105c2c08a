package commands

import (
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
	"github.com/pingcap-incubator/tinycol/log"
)

// Command is an operator which runs inside a transaction: an insert, a commit or an abort.
type Command interface {
	Context() *txn.Context
	// Name is used in logs.
	Name() string
	// Execute runs the command. RunCommand has already checked that the context belongs to manager and is active.
	Execute(manager *txn.Manager) (interface{}, error)
}

// RunCommand checks the context of cmd and executes it.
func RunCommand(cmd Command, manager *txn.Manager) (interface{}, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Errorf("%s: no transaction context", cmd.Name())
	}
	if ctx.Manager() != manager {
		return nil, errors.Annotate(txn.ErrForeignContext, cmd.Name())
	}
	if err := ctx.CheckActive(cmd.Name()); err != nil {
		return nil, err
	}

	resp, err := cmd.Execute(manager)
	if err != nil {
		if txn.IsConflict(err) {
			log.Debugf("%s of %s lost a write conflict: %v", cmd.Name(), ctx, err)
		} else {
			log.Warnf("%s of %s failed: %v", cmd.Name(), ctx, err)
		}
		return nil, err
	}
	return resp, nil
}

// CommandBase provides the Context method of the Command interface.
type CommandBase struct {
	ctx *txn.Context
}

func (base CommandBase) Context() *txn.Context {
	return base.ctx
}
