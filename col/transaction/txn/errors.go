package txn

import (
	"fmt"

	"github.com/pingcap/errors"
)

var (
	// ErrInvalidState is the cause of every InvalidStateError.
	ErrInvalidState = errors.New("transaction context is in an invalid state")
	// ErrConflict is the cause of every ConflictError.
	ErrConflict = errors.New("write conflict")
	// ErrForeignContext is returned when a context is used with a manager which did not build it.
	ErrForeignContext = errors.New("transaction context belongs to another manager")
)

// InvalidStateError reports an operation invoked on a context which is not Active.
type InvalidStateError struct {
	TxnID uint64
	State State
	Op    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s txn %d in state %s", ErrInvalidState, e.Op, e.TxnID, e.State)
}

func (e *InvalidStateError) Cause() error {
	return ErrInvalidState
}

// ConflictError reports a write-write conflict on a unique key of a store. Usually another transaction already
// committed a row with the key. When ConflictTxnID equals TxnID the transaction wrote the key twice itself.
type ConflictError struct {
	TxnID         uint64
	ConflictTxnID uint64
	Store         string
	Key           string
}

func (e *ConflictError) Error() string {
	if e.ConflictTxnID == e.TxnID {
		return fmt.Sprintf("%s: txn %d wrote key %s twice in store %s", ErrConflict, e.TxnID, e.Key, e.Store)
	}
	return fmt.Sprintf("%s: txn %d wrote key %s in store %s, already written by committed txn %d",
		ErrConflict, e.TxnID, e.Key, e.Store, e.ConflictTxnID)
}

func (e *ConflictError) Cause() error {
	return ErrConflict
}

// IsConflict reports whether err was caused by a write conflict.
func IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

// IsInvalidState reports whether err was caused by using a finished context.
func IsInvalidState(err error) bool {
	return errors.Cause(err) == ErrInvalidState
}
