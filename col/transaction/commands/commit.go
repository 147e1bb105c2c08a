package commands

import (
	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/storage"
	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
	"github.com/pingcap-incubator/tinycol/log"
)

type CommitOptions struct {
	// MergeAfterCommit runs the merge check of every store after a successful commit.
	MergeAfterCommit bool
	// Scheduler moves those checks to a background worker. They run synchronously when nil.
	Scheduler *storage.MergeScheduler
}

// CommitOptionsFromConfig maps the merge section of the config; scheduler is only used when background merges are on.
func CommitOptionsFromConfig(cfg config.MergeConfig, scheduler *storage.MergeScheduler) CommitOptions {
	opts := CommitOptions{MergeAfterCommit: cfg.AfterCommit}
	if cfg.Background {
		opts.Scheduler = scheduler
	}
	return opts
}

// Commit finalizes a transaction. The response is the commit id.
type Commit struct {
	CommandBase
	stores []*storage.Store
	opts   CommitOptions
}

// NewCommit builds a commit of ctx. stores are the stores to check for merges afterwards; they do not need to match
// the stores ctx wrote to.
func NewCommit(ctx *txn.Context, stores []*storage.Store, opts CommitOptions) *Commit {
	return &Commit{CommandBase: CommandBase{ctx: ctx}, stores: stores, opts: opts}
}

func (c *Commit) Name() string {
	return "commit"
}

func (c *Commit) Execute(manager *txn.Manager) (interface{}, error) {
	commitID, err := manager.Commit(c.ctx)
	if err != nil {
		return nil, err
	}
	if c.opts.MergeAfterCommit {
		c.mergeStores()
	}
	return commitID, nil
}

// mergeStores never fails the commit; it has already happened.
func (c *Commit) mergeStores() {
	for _, s := range c.stores {
		if c.opts.Scheduler != nil {
			c.opts.Scheduler.Schedule(s)
			continue
		}
		if _, err := s.MergeIfNeeded(); err != nil {
			log.Errorf("merge of store %s after commit of %s failed: %v", s.Name(), c.ctx, err)
		}
	}
}

// Abort rolls a transaction back.
type Abort struct {
	CommandBase
}

func NewAbort(ctx *txn.Context) *Abort {
	return &Abort{CommandBase: CommandBase{ctx: ctx}}
}

func (a *Abort) Name() string {
	return "abort"
}

func (a *Abort) Execute(manager *txn.Manager) (interface{}, error) {
	if err := manager.Abort(a.ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
