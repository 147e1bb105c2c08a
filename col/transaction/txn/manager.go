package txn

import (
	"sync"

	"github.com/pingcap/errors"
	"go.uber.org/atomic"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/transaction/latches"
	"github.com/pingcap-incubator/tinycol/log"
)

type txnStatus struct {
	state    State
	commitID uint64
}

// Manager issues transaction ids and commit ids. A process keeps a single manager and passes it explicitly to the
// operators that need it; tests build isolated instances. Manager implements mvcc.Oracle.
//
// The status of every transaction is kept for the lifetime of the manager, aborted ones included: rows keep the id
// of the transaction that wrote them and an id the manager forgot would resolve as committed. Memory therefore grows
// with the number of transactions built.
type Manager struct {
	// lastTxnID is the last transaction id handed out.
	lastTxnID *atomic.Uint64
	// lastCommitID is the last commit id handed out. It only moves under mu, together with status.
	lastCommitID *atomic.Uint64
	firstTxnID   uint64

	latches *latches.Latches

	// mu guards status and active.
	mu     sync.RWMutex
	status map[uint64]txnStatus
	active int
}

func NewManager(cfg config.TxnConfig) *Manager {
	first := cfg.FirstTxnID
	if first == 0 {
		first = 1
	}
	return &Manager{
		lastTxnID:    atomic.NewUint64(first - 1),
		lastCommitID: atomic.NewUint64(0),
		firstTxnID:   first,
		latches:      latches.NewLatches(),
		status:       make(map[uint64]txnStatus),
	}
}

// BuildContext starts a transaction. It never fails.
func (m *Manager) BuildContext() *Context {
	id := m.lastTxnID.Inc()

	m.mu.Lock()
	m.status[id] = txnStatus{state: Active}
	m.active++
	snapshot := m.lastCommitID.Load()
	m.mu.Unlock()

	activeTxnGauge.Inc()
	return &Context{id: id, snapshotID: snapshot, manager: m, state: Active}
}

// Commit finalizes ctx. Every participant validates ctx while the keys it wrote are latched; if one reports a
// conflict the context is aborted and the ConflictError returned. Otherwise ctx gets the next commit id and all its
// rows become visible to snapshots at or after that id at once.
func (m *Manager) Commit(ctx *Context) (uint64, error) {
	if err := m.own(ctx); err != nil {
		commitCounter.WithLabelValues("invalid").Inc()
		return 0, err
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if err := ctx.checkActiveLocked("commit"); err != nil {
		commitCounter.WithLabelValues("invalid").Inc()
		return 0, err
	}

	m.latches.WaitForLatches(ctx.latchKeys)
	defer m.latches.ReleaseLatches(ctx.latchKeys)

	for _, p := range ctx.participants {
		if err := p.Validate(ctx); err != nil {
			m.abortLocked(ctx)
			if IsConflict(err) {
				commitCounter.WithLabelValues("conflict").Inc()
				log.Debugf("%s aborted on conflict: %v", ctx, err)
			} else {
				commitCounter.WithLabelValues("error").Inc()
			}
			return 0, err
		}
	}

	m.mu.Lock()
	commitID := m.lastCommitID.Inc()
	m.status[ctx.id] = txnStatus{state: Committed, commitID: commitID}
	m.active--
	m.mu.Unlock()

	ctx.state = Committed
	ctx.commitID = commitID
	activeTxnGauge.Dec()
	commitCounter.WithLabelValues("committed").Inc()
	log.Debugf("%s committed with commit id %d", ctx, commitID)
	return commitID, nil
}

// Abort rolls ctx back. Its rows stay physically in the stores but are never visible to anyone.
func (m *Manager) Abort(ctx *Context) error {
	if err := m.own(ctx); err != nil {
		return err
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if err := ctx.checkActiveLocked("abort"); err != nil {
		return err
	}
	m.abortLocked(ctx)
	log.Debugf("%s aborted", ctx)
	return nil
}

// abortLocked requires ctx.mu.
func (m *Manager) abortLocked(ctx *Context) {
	m.mu.Lock()
	m.status[ctx.id] = txnStatus{state: Aborted}
	m.active--
	m.mu.Unlock()

	for _, p := range ctx.participants {
		p.Discard(ctx)
	}
	ctx.state = Aborted
	activeTxnGauge.Dec()
	abortCounter.Inc()
}

func (m *Manager) own(ctx *Context) error {
	if ctx == nil {
		return errors.New("nil transaction context")
	}
	if ctx.manager != m {
		return errors.Trace(ErrForeignContext)
	}
	return nil
}

// Resolve implements mvcc.Oracle. Committed transactions resolve to their commit id, active and aborted ones are
// not visible, and ids this manager never handed out (bootstrap and bulk-load ids) resolve to themselves.
func (m *Manager) Resolve(txnID uint64) (uint64, bool) {
	m.mu.RLock()
	st, ok := m.status[txnID]
	m.mu.RUnlock()
	if !ok {
		return txnID, true
	}
	if st.state == Committed {
		return st.commitID, true
	}
	return 0, false
}

// State returns the state of a transaction this manager handed out.
func (m *Manager) State(txnID uint64) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[txnID]
	return st.state, ok
}

// LastCommitID is the newest snapshot id: every transaction committed so far is visible at it.
func (m *Manager) LastCommitID() uint64 {
	return m.lastCommitID.Load()
}

// LastTxnID is the last transaction id handed out.
func (m *Manager) LastTxnID() uint64 {
	return m.lastTxnID.Load()
}

// FirstTxnID is the first id this manager hands out.
func (m *Manager) FirstTxnID() uint64 {
	return m.firstTxnID
}

// TrackedCount is the number of transactions whose status the manager holds.
func (m *Manager) TrackedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.status)
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}
