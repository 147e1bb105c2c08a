package storage

import (
	"fmt"
	"math"

	"github.com/cznic/mathutil"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
)

// MergeOutcome tells the caller of MergeIfNeeded or Merge what happened.
type MergeOutcome int

const (
	// MergeNotNeeded means the strategy saw no reason to merge.
	MergeNotNeeded MergeOutcome = iota
	// MergeSkipped means another merge of the same store was in flight.
	MergeSkipped
	// MergeDone means new main partitions were published.
	MergeDone
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeNotNeeded:
		return "not-needed"
	case MergeSkipped:
		return "skipped"
	case MergeDone:
		return "done"
	}
	return fmt.Sprintf("MergeOutcome(%d)", int(o))
}

// MergeStrategy decides from the current sizes whether the delta should be merged into main.
type MergeStrategy interface {
	ShouldMerge(mainRows, deltaRows uint64) bool
}

// LogarithmicMergeStrategy merges once the delta holds at least max(MinDeltaRows, 2^floor(log2(main+1))) rows, so
// the number of merges grows logarithmically with the table. An empty delta is never merged.
type LogarithmicMergeStrategy struct {
	MinDeltaRows uint64
}

func (s LogarithmicMergeStrategy) ShouldMerge(mainRows, deltaRows uint64) bool {
	if deltaRows == 0 {
		return false
	}
	return deltaRows >= s.Threshold(mainRows)
}

// Threshold is the delta size at which a main of mainRows rows gets merged.
func (s LogarithmicMergeStrategy) Threshold(mainRows uint64) uint64 {
	exp := 63
	if mainRows < math.MaxUint64 {
		exp = mathutil.Log2Uint64(mainRows + 1)
	}
	return mathutil.MaxUint64(s.MinDeltaRows, uint64(1)<<uint(exp))
}

// NeverMergeStrategy leaves merging to explicit Store.Merge calls.
type NeverMergeStrategy struct{}

func (NeverMergeStrategy) ShouldMerge(uint64, uint64) bool {
	return false
}

// Merger consolidates the main partitions and the delta of a store into new main partitions. The result must hold
// the same rows with the same validity entries, main rows first, in their original order.
type Merger interface {
	Merge(main []*mvcc.VersionedTable, delta *mvcc.VersionedTable) ([]*mvcc.VersionedTable, error)
}

// SequentialHeapMerger concatenates every main partition and then the delta into a single new partition. With
// Compressed set the columns of the result are dictionary encoded.
type SequentialHeapMerger struct {
	Compressed bool
}

func (m SequentialHeapMerger) Merge(main []*mvcc.VersionedTable, delta *mvcc.VersionedTable) ([]*mvcc.VersionedTable, error) {
	if (delta == nil || delta.Len() == 0) && m.encoded(main) {
		return main, nil
	}

	parts := make([]*mvcc.VersionedTable, 0, len(main)+1)
	parts = append(parts, main...)
	if delta != nil && delta.Len() > 0 {
		parts = append(parts, delta)
	}
	if len(parts) == 0 {
		return main, nil
	}

	schema := parts[0].Schema()
	tables := make([]*table.Table, 0, len(parts))
	total := 0
	for _, p := range parts {
		if !p.Schema().Equal(schema) {
			return nil, errors.Errorf("merge: partition schema %v does not match %v", p.Schema().Columns, schema.Columns)
		}
		tables = append(tables, p.Table)
		total += p.Len()
	}
	validity := make([]mvcc.Validity, 0, total)
	for _, p := range parts {
		validity = append(validity, p.Validity...)
	}

	merged, err := mvcc.NewVersionedTable(table.Concat(schema, tables, m.Compressed), validity)
	if err != nil {
		return nil, err
	}
	return []*mvcc.VersionedTable{merged}, nil
}

// encoded reports whether main is already a single partition with the requested encoding.
func (m SequentialHeapMerger) encoded(main []*mvcc.VersionedTable) bool {
	if len(main) > 1 {
		return false
	}
	if len(main) == 0 || !m.Compressed || main[0].Len() == 0 {
		return true
	}
	return main[0].Compressed()
}

// StrategyFromConfig builds the strategy named by cfg.
func StrategyFromConfig(cfg config.MergeConfig) (MergeStrategy, error) {
	switch cfg.Strategy {
	case config.MergeStrategyLogarithmic, "":
		return LogarithmicMergeStrategy{MinDeltaRows: cfg.MinDeltaRows}, nil
	case config.MergeStrategyNever:
		return NeverMergeStrategy{}, nil
	}
	return nil, errors.Errorf("unknown merge strategy %q", cfg.Strategy)
}
