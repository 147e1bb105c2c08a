package txn

import (
	"sort"
	"sync"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinycol/col/config"
)

// fakeParticipant fails validation for the configured transactions and counts discards.
type fakeParticipant struct {
	id        string
	conflicts map[uint64]bool
	mu        sync.Mutex
	validated []uint64
	discarded []uint64
}

func newFakeParticipant(id string) *fakeParticipant {
	return &fakeParticipant{id: id, conflicts: make(map[uint64]bool)}
}

func (p *fakeParticipant) ParticipantID() string { return p.id }

func (p *fakeParticipant) Validate(ctx *Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validated = append(p.validated, ctx.ID())
	if p.conflicts[ctx.ID()] {
		return &ConflictError{TxnID: ctx.ID(), ConflictTxnID: 1, Store: p.id, Key: "(1)"}
	}
	return nil
}

func (p *fakeParticipant) Discard(ctx *Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discarded = append(p.discarded, ctx.ID())
}

func newTestManager() *Manager {
	return NewManager(config.NewTestConfig().Txn)
}

func TestBuildContext(t *testing.T) {
	m := newTestManager()
	a := m.BuildContext()
	b := m.BuildContext()
	assert.Equal(t, uint64(1), a.ID())
	assert.Equal(t, uint64(2), b.ID())
	assert.Equal(t, Active, a.State())
	assert.Equal(t, uint64(0), a.SnapshotID())
	assert.Equal(t, 2, m.ActiveCount())
	assert.Same(t, m, a.Manager())

	m2 := NewManager(config.TxnConfig{FirstTxnID: 1000})
	assert.Equal(t, uint64(1000), m2.BuildContext().ID())
	assert.Equal(t, uint64(1000), m2.FirstTxnID())
}

func TestConcurrentBuildContextUnique(t *testing.T) {
	m := newTestManager()
	const n = 64
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = m.BuildContext().ID()
		}(i)
	}
	wg.Wait()
	seen := make(map[uint64]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, uint64(n), m.LastTxnID())
}

func TestSequentialCommitIDs(t *testing.T) {
	m := newTestManager()
	for i := uint64(1); i <= 100; i++ {
		ctx := m.BuildContext()
		assert.Equal(t, i-1, ctx.SnapshotID())
		cid, err := m.Commit(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, cid)
		got, ok := ctx.CommitID()
		assert.True(t, ok)
		assert.Equal(t, i, got)
	}
	assert.Equal(t, uint64(100), m.LastCommitID())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestConcurrentCommitIDsUnique(t *testing.T) {
	m := newTestManager()
	const n = 50
	cids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cid, err := m.Commit(m.BuildContext())
			assert.NoError(t, err)
			cids[i] = cid
		}(i)
	}
	wg.Wait()
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })
	for i, cid := range cids {
		assert.Equal(t, uint64(i+1), cid)
	}
}

func TestInvalidState(t *testing.T) {
	m := newTestManager()
	ctx := m.BuildContext()
	_, err := m.Commit(ctx)
	require.NoError(t, err)

	_, err = m.Commit(ctx)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, ErrInvalidState, errors.Cause(err))

	err = m.Abort(ctx)
	assert.True(t, IsInvalidState(err))

	aborted := m.BuildContext()
	require.NoError(t, m.Abort(aborted))
	assert.Equal(t, Aborted, aborted.State())
	_, err = m.Commit(aborted)
	assert.True(t, IsInvalidState(err))
	assert.True(t, IsInvalidState(aborted.RecordWrite(newFakeParticipant("s"), nil, nil)))
	_, committed := aborted.CommitID()
	assert.False(t, committed)
}

func TestForeignContext(t *testing.T) {
	m1, m2 := newTestManager(), newTestManager()
	ctx := m1.BuildContext()
	_, err := m2.Commit(ctx)
	assert.Equal(t, ErrForeignContext, errors.Cause(err))
	assert.Equal(t, ErrForeignContext, errors.Cause(m2.Abort(ctx)))
	_, err = m1.Commit(nil)
	assert.Error(t, err)
}

func TestConflictAborts(t *testing.T) {
	m := newTestManager()
	p := newFakeParticipant("store-a")

	loser := m.BuildContext()
	p.conflicts[loser.ID()] = true
	require.NoError(t, loser.RecordWrite(p, [][]byte{[]byte("k")}, nil))
	require.NoError(t, loser.RecordWrite(p, [][]byte{[]byte("k2")}, nil))

	_, err := m.Commit(loser)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, ErrConflict, errors.Cause(err))
	_, ok := err.(*ConflictError)
	assert.True(t, ok)
	assert.Equal(t, Aborted, loser.State())
	assert.Equal(t, []uint64{loser.ID()}, p.discarded)

	// The failed commit did not consume a commit id.
	winner := m.BuildContext()
	require.NoError(t, winner.RecordWrite(p, nil, nil))
	cid, err := m.Commit(winner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cid)
	assert.Equal(t, []uint64{loser.ID(), winner.ID()}, p.validated)
}

func TestResolve(t *testing.T) {
	m := newTestManager()
	active := m.BuildContext()
	aborted := m.BuildContext()
	committed := m.BuildContext()
	require.NoError(t, m.Abort(aborted))
	_, err := m.Commit(committed)
	require.NoError(t, err)

	_, ok := m.Resolve(active.ID())
	assert.False(t, ok)
	_, ok = m.Resolve(aborted.ID())
	assert.False(t, ok)
	cid, ok := m.Resolve(committed.ID())
	assert.True(t, ok)
	assert.Equal(t, uint64(1), cid)

	// Ids never handed out resolve to themselves.
	cid, ok = m.Resolve(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), cid)
	cid, ok = m.Resolve(777)
	assert.True(t, ok)
	assert.Equal(t, uint64(777), cid)

	st, ok := m.State(aborted.ID())
	assert.True(t, ok)
	assert.Equal(t, Aborted, st)
	_, ok = m.State(777)
	assert.False(t, ok)
	assert.Equal(t, "Committed", Committed.String())
}

func TestRecordWriteApply(t *testing.T) {
	m := newTestManager()
	p := newFakeParticipant("store-a")
	ctx := m.BuildContext()

	failed := errors.New("append failed")
	err := ctx.RecordWrite(p, [][]byte{[]byte("k")}, func() error { return failed })
	assert.Equal(t, failed, err)
	assert.Empty(t, ctx.participants)
	assert.Empty(t, ctx.latchKeys)

	applied := 0
	require.NoError(t, ctx.RecordWrite(p, [][]byte{[]byte("k")}, func() error {
		applied++
		// The context stays Active while the write is applied.
		assert.Equal(t, Active, ctx.state)
		return nil
	}))
	assert.Equal(t, 1, applied)
	assert.Len(t, ctx.participants, 1)

	_, err = m.Commit(ctx)
	require.NoError(t, err)
	err = ctx.RecordWrite(p, nil, func() error {
		applied++
		return nil
	})
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, 1, applied)
}

func TestRecordWriteRacesCommit(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 200; i++ {
		p := newFakeParticipant("store-a")
		ctx := m.BuildContext()
		var wg sync.WaitGroup
		var wrote bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			wrote = ctx.RecordWrite(p, nil, func() error { return nil }) == nil
		}()
		go func() {
			defer wg.Done()
			_, err := m.Commit(ctx)
			assert.NoError(t, err)
		}()
		wg.Wait()
		// A write either landed before the commit validated the context or was refused.
		p.mu.Lock()
		validated := len(p.validated)
		p.mu.Unlock()
		if wrote {
			assert.Equal(t, 1, validated)
		} else {
			assert.Equal(t, 0, validated)
		}
	}
}

func TestFinishedStatusIsRetained(t *testing.T) {
	m := newTestManager()
	aborted := m.BuildContext()
	require.NoError(t, m.Abort(aborted))
	for i := 0; i < 100; i++ {
		_, err := m.Commit(m.BuildContext())
		require.NoError(t, err)
	}
	// Rows of an aborted transaction stay in the stores, so its status must outlive it.
	_, ok := m.Resolve(aborted.ID())
	assert.False(t, ok)
	st, ok := m.State(aborted.ID())
	assert.True(t, ok)
	assert.Equal(t, Aborted, st)
	assert.Equal(t, 101, m.TrackedCount())
}
