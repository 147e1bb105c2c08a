package txn

import (
	"fmt"
	"sync"
)

type State int32

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Participant is a store written by a transaction. The manager asks every participant to validate a context before
// it commits and to discard the context's claims when it aborts.
type Participant interface {
	ParticipantID() string
	// Validate returns a *ConflictError if ctx may not commit.
	Validate(ctx *Context) error
	// Discard forgets everything ctx claimed in the participant. Rows stay physically present.
	Discard(ctx *Context)
}

// Context is the caller-held handle of one logical transaction.
type Context struct {
	id         uint64
	snapshotID uint64
	manager    *Manager

	// mu guards everything below. Commit and Abort hold it for their whole duration.
	mu           sync.Mutex
	state        State
	commitID     uint64
	participants []Participant
	latchKeys    [][]byte
}

// ID is the transaction id, unique and increasing across the process.
func (c *Context) ID() uint64 {
	return c.id
}

// SnapshotID is the last commit id at the time the context was built. Reading at it gives the transaction a
// consistent view.
func (c *Context) SnapshotID() uint64 {
	return c.snapshotID
}

func (c *Context) Manager() *Manager {
	return c.manager
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CommitID returns the commit id once the context committed.
func (c *Context) CommitID() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitID, c.state == Committed
}

// CheckActive returns an InvalidStateError naming op unless the context is Active.
func (c *Context) CheckActive(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkActiveLocked(op)
}

func (c *Context) checkActiveLocked(op string) error {
	if c.state != Active {
		return &InvalidStateError{TxnID: c.id, State: c.state, Op: op}
	}
	return nil
}

// RecordWrite registers p as a participant and adds keys to the set latched at commit. Keys must already be unique
// across participants, e.g. prefixed with the participant id. A non-nil apply runs first, while the context is held
// Active, so Commit and Abort either see the whole write or none of it. Nothing is recorded when apply fails.
func (c *Context) RecordWrite(p Participant, keys [][]byte, apply func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkActiveLocked("write"); err != nil {
		return err
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	found := false
	for _, existing := range c.participants {
		if existing.ParticipantID() == p.ParticipantID() {
			found = true
			break
		}
	}
	if !found {
		c.participants = append(c.participants, p)
	}
	c.latchKeys = append(c.latchKeys, keys...)
	return nil
}

func (c *Context) String() string {
	return fmt.Sprintf("txn(%d, snapshot %d)", c.id, c.snapshotID)
}
