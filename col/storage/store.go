package storage

import (
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
	"github.com/pingcap-incubator/tinycol/col/util/codec"
	"github.com/pingcap-incubator/tinycol/log"
)

// ErrForeignManager is returned when a store bound to one transaction manager is written through another.
var ErrForeignManager = errors.New("store is bound to another transaction manager")

type Options struct {
	// Name is used in logs and errors. A store gets a generated name when empty.
	Name     string
	Strategy MergeStrategy
	Merger   Merger
	// Oracle resolves the transaction ids stored in rows. When nil every id counts as committed at itself until the
	// first Append binds the store to the manager of the appending context.
	Oracle mvcc.Oracle
}

// DefaultOptions merges with a LogarithmicMergeStrategy and an uncompressed SequentialHeapMerger.
func DefaultOptions() Options {
	return Options{
		Strategy: LogarithmicMergeStrategy{},
		Merger:   SequentialHeapMerger{},
	}
}

// OptionsFromConfig builds store options from the merge section of the config.
func OptionsFromConfig(cfg config.MergeConfig) (Options, error) {
	strategy, err := StrategyFromConfig(cfg)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Strategy: strategy,
		Merger:   SequentialHeapMerger{Compressed: cfg.Compressed},
	}, nil
}

// version is an immutable snapshot of a store's physical layout. Readers load it atomically and never lock.
type version struct {
	main   []*mvcc.VersionedTable
	delta  *mvcc.VersionedTable
	oracle mvcc.Oracle
}

func (v *version) mainLen() int {
	n := 0
	for _, p := range v.main {
		n += p.Len()
	}
	return n
}

func (v *version) partitions() []*mvcc.VersionedTable {
	parts := make([]*mvcc.VersionedTable, 0, len(v.main)+1)
	parts = append(parts, v.main...)
	return append(parts, v.delta)
}

// Store is an append-only columnar table with a read-optimised main part and a write-optimised delta. Rows are
// appended to the delta by transactions and become visible according to their validity entries; merges move the
// delta into new main partitions without changing what any reader sees.
type Store struct {
	id       string
	name     string
	schema   *table.Schema
	strategy MergeStrategy
	merger   Merger

	current *atomic.Pointer[version]
	merging *atomic.Bool
	keys    *keyIndex

	// mu serialises writers: appends and merge publication.
	mu       sync.Mutex
	builder  *table.Builder
	validity []mvcc.Validity
	oracle   mvcc.Oracle
	bound    bool
}

// New creates an empty store.
func New(schema *table.Schema, opts Options) *Store {
	return newStore(schema, nil, opts)
}

// FromTable wraps t as the single main partition of a new store. Its rows are tagged as bootstrap rows, visible at
// every snapshot. It fails with a *txn.ConflictError when t holds two rows with the same unique key.
func FromTable(t *table.Table, opts Options) (*Store, error) {
	vt := mvcc.GenerateValidityTable(t, mvcc.BootstrapTxnID)
	s := newStore(t.Schema(), []*mvcc.VersionedTable{vt}, opts)
	if err := s.seedKeys(vt); err != nil {
		return nil, err
	}
	return s, nil
}

// seedKeys records the unique keys of rows a store starts with, each under the transaction that wrote it.
func (s *Store) seedKeys(vt *mvcc.VersionedTable) error {
	if !s.schema.HasKey() {
		return nil
	}
	keys := make([][]byte, 0, vt.Len())
	writers := make([]uint64, 0, vt.Len())
	for i := 0; i < vt.Len(); i++ {
		key, err := s.encodeKey(vt.Row(i))
		if err != nil {
			return errors.Annotatef(err, "store %s: key of row %d", s.name, i)
		}
		keys = append(keys, key)
		writers = append(writers, vt.Validity[i].Begin)
	}
	if dup, ok := s.keys.seed(writers, keys); !ok {
		return &txn.ConflictError{Store: s.name, Key: formatKey(dup)}
	}
	return nil
}

func newStore(schema *table.Schema, main []*mvcc.VersionedTable, opts Options) *Store {
	if opts.Strategy == nil {
		opts.Strategy = LogarithmicMergeStrategy{}
	}
	if opts.Merger == nil {
		opts.Merger = SequentialHeapMerger{}
	}
	id := uuid.New().String()
	name := opts.Name
	if name == "" {
		name = "store-" + id[:8]
	}
	s := &Store{
		id:       id,
		name:     name,
		schema:   schema,
		strategy: opts.Strategy,
		merger:   opts.Merger,
		merging:  atomic.NewBool(false),
		keys:     newKeyIndex(),
		builder:  table.NewBuilder(schema, 0),
		oracle:   opts.Oracle,
		bound:    opts.Oracle != nil,
	}
	oracle := opts.Oracle
	if oracle == nil {
		oracle = mvcc.SelfCommitted
	}
	s.current = atomic.NewPointer(&version{main: main, delta: s.deltaLocked(), oracle: oracle})
	return s
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Schema() *table.Schema {
	return s.schema
}

// Len is the number of physical rows in main and delta.
func (s *Store) Len() int {
	v := s.current.Load()
	return v.mainLen() + v.delta.Len()
}

func (s *Store) MainSize() int {
	return s.current.Load().mainLen()
}

func (s *Store) DeltaSize() int {
	return s.current.Load().delta.Len()
}

// Partitions returns the current main partitions.
func (s *Store) Partitions() []*mvcc.VersionedTable {
	v := s.current.Load()
	return append([]*mvcc.VersionedTable(nil), v.main...)
}

// Delta returns the current delta region.
func (s *Store) Delta() *mvcc.VersionedTable {
	return s.current.Load().delta
}

// Append adds rows to the delta on behalf of ctx. Nothing is appended unless every row matches the schema and, for
// keyed schemas, no unique key repeats within the rows or among the rows ctx appended before. The rows stay
// invisible to other transactions until ctx commits.
func (s *Store) Append(rows []table.Row, ctx *txn.Context) error {
	if ctx == nil {
		return errors.New("append without transaction context")
	}
	if err := ctx.CheckActive("append"); err != nil {
		return err
	}
	coerced, err := s.schema.CoerceRows(rows)
	if err != nil {
		return errors.Trace(err)
	}
	if len(coerced) == 0 {
		return nil
	}

	var keys, latchKeys [][]byte
	if s.schema.HasKey() {
		keys = make([][]byte, 0, len(coerced))
		latchKeys = make([][]byte, 0, len(coerced))
		for _, row := range coerced {
			key, err := s.encodeKey(row)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			latchKeys = append(latchKeys, append([]byte(s.id+"/"), key...))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bindLocked(ctx.Manager()); err != nil {
		return err
	}
	err = ctx.RecordWrite(s, latchKeys, func() error {
		if keys != nil {
			if dup, ok := s.keys.claim(ctx.ID(), keys); !ok {
				return &txn.ConflictError{TxnID: ctx.ID(), ConflictTxnID: ctx.ID(), Store: s.name, Key: formatKey(dup)}
			}
		}
		s.builder.AppendCoerced(coerced)
		s.validity = append(s.validity, mvcc.ValidityColumn(len(coerced), ctx.ID())...)
		s.publishLocked(s.current.Load().main)
		return nil
	})
	if err != nil {
		return err
	}

	appendCounter.Inc()
	appendRowsCounter.Add(float64(len(coerced)))
	return nil
}

func (s *Store) bindLocked(m *txn.Manager) error {
	if !s.bound {
		s.oracle = m
		s.bound = true
		return nil
	}
	if s.oracle != mvcc.Oracle(m) {
		return errors.Annotatef(ErrForeignManager, "store %s", s.name)
	}
	return nil
}

func (s *Store) encodeKey(row table.Row) ([]byte, error) {
	return codec.EncodeKey(s.schema.KeyValues(row)...)
}

// deltaLocked requires s.mu or exclusive access to s.
func (s *Store) deltaLocked() *mvcc.VersionedTable {
	n := len(s.validity)
	return &mvcc.VersionedTable{Table: s.builder.View(), Validity: s.validity[:n:n]}
}

func (s *Store) publishLocked(main []*mvcc.VersionedTable) {
	oracle := s.oracle
	if oracle == nil {
		oracle = mvcc.SelfCommitted
	}
	s.current.Store(&version{main: main, delta: s.deltaLocked(), oracle: oracle})
}

// SnapshotRead returns the rows visible at snapshot. The iterator works on the version current at the time of the
// call; later appends and merges do not affect it.
func (s *Store) SnapshotRead(snapshot uint64) *RowIterator {
	v := s.current.Load()
	return newRowIterator(v.partitions(), func(vt *mvcc.VersionedTable) *roaring.Bitmap {
		return vt.VisibleRows(snapshot, v.oracle)
	})
}

// ReadInTx returns the rows visible at the snapshot of ctx together with the rows ctx appended itself.
func (s *Store) ReadInTx(ctx *txn.Context) *RowIterator {
	v := s.current.Load()
	snapshot, id := ctx.SnapshotID(), ctx.ID()
	return newRowIterator(v.partitions(), func(vt *mvcc.VersionedTable) *roaring.Bitmap {
		return vt.VisibleRowsFor(snapshot, id, v.oracle)
	})
}

// MergeIfNeeded merges when the strategy asks for it.
func (s *Store) MergeIfNeeded() (MergeOutcome, error) {
	v := s.current.Load()
	if !s.strategy.ShouldMerge(uint64(v.mainLen()), uint64(v.delta.Len())) {
		mergeCounter.WithLabelValues(MergeNotNeeded.String()).Inc()
		return MergeNotNeeded, nil
	}
	return s.merge()
}

// Merge runs the merger regardless of the strategy.
func (s *Store) Merge() (MergeOutcome, error) {
	return s.merge()
}

// merge computes new main partitions from the current version without holding the writer lock. Rows appended in the
// meantime stay in the delta, which is rebased when the result is published.
func (s *Store) merge() (MergeOutcome, error) {
	if !s.merging.CompareAndSwap(false, true) {
		mergeCounter.WithLabelValues(MergeSkipped.String()).Inc()
		return MergeSkipped, nil
	}
	defer s.merging.Store(false)

	start := time.Now()
	captured := s.current.Load()
	merged, err := s.merger.Merge(captured.main, captured.delta)
	if err != nil {
		mergeCounter.WithLabelValues("error").Inc()
		return MergeNotNeeded, errors.Annotatef(err, "merge store %s", s.name)
	}
	consumed := captured.delta.Len()

	s.mu.Lock()
	if consumed > 0 {
		s.builder = s.builder.Suffix(consumed)
		s.validity = append([]mvcc.Validity(nil), s.validity[consumed:]...)
	}
	s.publishLocked(merged)
	s.mu.Unlock()

	mergeDuration.Observe(time.Since(start).Seconds())
	mergeCounter.WithLabelValues(MergeDone.String()).Inc()
	log.Debugf("store %s merged %d delta rows into %d main rows", s.name, consumed, s.MainSize())
	return MergeDone, nil
}

// ParticipantID implements txn.Participant.
func (s *Store) ParticipantID() string {
	return s.id
}

// Validate implements txn.Participant. It fails with a *txn.ConflictError when a key written by ctx was already
// written by a committed transaction.
func (s *Store) Validate(ctx *txn.Context) error {
	key, writer, conflict := s.keys.validate(ctx.ID(), s.current.Load().oracle)
	if !conflict {
		return nil
	}
	return &txn.ConflictError{TxnID: ctx.ID(), ConflictTxnID: writer, Store: s.name, Key: formatKey(key)}
}

// Discard implements txn.Participant.
func (s *Store) Discard(ctx *txn.Context) {
	s.keys.release(ctx.ID())
}
