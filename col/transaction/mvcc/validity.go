package mvcc

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/col/table"
)

// Unbounded marks a row which has not been invalidated.
const Unbounded uint64 = math.MaxUint64

// BootstrapTxnID tags rows which exist from the moment a store is created. It is never handed out to a transaction.
const BootstrapTxnID uint64 = 0

// Validity is the per-row visibility metadata: the row was written by transaction Begin and stays valid until End.
type Validity struct {
	Begin uint64
	End   uint64
}

func (v Validity) String() string {
	if v.End == Unbounded {
		return fmt.Sprintf("[%d, inf)", v.Begin)
	}
	return fmt.Sprintf("[%d, %d)", v.Begin, v.End)
}

// Oracle maps the transaction id stored in a row to the id readers compare snapshots against.
type Oracle interface {
	// Resolve returns the commit id of txnID, or ok == false while the transaction is not committed.
	Resolve(txnID uint64) (commitID uint64, ok bool)
}

type selfCommitted struct{}

func (selfCommitted) Resolve(txnID uint64) (uint64, bool) {
	return txnID, true
}

// SelfCommitted treats every transaction id as committed at itself, i.e. a row is visible at S iff Begin <= S.
var SelfCommitted Oracle = selfCommitted{}

// Visible reports whether a row with validity v is visible to a reader holding snapshot id snapshot.
func Visible(v Validity, snapshot uint64, oracle Oracle) bool {
	begin, ok := oracle.Resolve(v.Begin)
	if !ok || begin > snapshot {
		return false
	}
	return v.End == Unbounded || snapshot < v.End
}

// ValidityColumn returns n entries all written by txnID and never invalidated.
func ValidityColumn(n int, txnID uint64) []Validity {
	col := make([]Validity, n)
	for i := range col {
		col[i] = Validity{Begin: txnID, End: Unbounded}
	}
	return col
}

// VersionedTable is a table with its validity column attached 1:1.
type VersionedTable struct {
	*table.Table
	Validity []Validity
}

// GenerateValidityTable attaches a validity column to t with every row written by txnID. It is the only way rows
// become associated with a transaction.
func GenerateValidityTable(t *table.Table, txnID uint64) *VersionedTable {
	return &VersionedTable{Table: t, Validity: ValidityColumn(t.Len(), txnID)}
}

// NewVersionedTable pairs a table with an existing validity column.
func NewVersionedTable(t *table.Table, validity []Validity) (*VersionedTable, error) {
	if t.Len() != len(validity) {
		return nil, errors.Errorf("mvcc: validity column has %d entries for %d rows", len(validity), t.Len())
	}
	return &VersionedTable{Table: t, Validity: validity}, nil
}

// VisibleRows returns the position list of rows visible at snapshot.
func (vt *VersionedTable) VisibleRows(snapshot uint64, oracle Oracle) *roaring.Bitmap {
	return vt.visibleRows(func(v Validity) bool { return Visible(v, snapshot, oracle) })
}

// VisibleRowsFor is like VisibleRows but also includes rows written by txnID itself.
func (vt *VersionedTable) VisibleRowsFor(snapshot, txnID uint64, oracle Oracle) *roaring.Bitmap {
	return vt.visibleRows(func(v Validity) bool {
		if v.Begin == txnID {
			return v.End == Unbounded
		}
		return Visible(v, snapshot, oracle)
	})
}

func (vt *VersionedTable) visibleRows(visible func(Validity) bool) *roaring.Bitmap {
	positions := roaring.NewBitmap()
	// Consecutive rows usually come from the same transaction, so remember the last verdict.
	var last Validity
	var lastVisible, haveLast bool
	for i, v := range vt.Validity {
		if !haveLast || v != last {
			last, lastVisible, haveLast = v, visible(v), true
		}
		if lastVisible {
			positions.Add(uint32(i))
		}
	}
	return positions
}
