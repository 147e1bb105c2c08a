package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/montanaflynn/stats"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/col/loader"
	"github.com/pingcap-incubator/tinycol/col/storage"
	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/commands"
	"github.com/pingcap-incubator/tinycol/col/transaction/txn"
	"github.com/pingcap-incubator/tinycol/log"
)

type benchOptions struct {
	Iterations int
	Rounds     int
	Warmup     int
	Workers    int
	// Rate caps transactions per second over all workers. Zero means unlimited.
	Rate float64
}

func defaultBenchOptions() benchOptions {
	return benchOptions{Iterations: 10000, Rounds: 10, Warmup: 2, Workers: 1}
}

func (o benchOptions) validate() error {
	if o.Iterations <= 0 || o.Rounds <= 0 || o.Workers <= 0 {
		return errors.Errorf("iterations, rounds and workers must be positive, got %d, %d and %d",
			o.Iterations, o.Rounds, o.Workers)
	}
	if o.Warmup < 0 || o.Rate < 0 {
		return errors.New("warmup and rate must not be negative")
	}
	return nil
}

type roundResult struct {
	Elapsed   time.Duration
	Commits   int
	Conflicts int
	// Latencies of single transactions in microseconds.
	Latencies []float64
}

type summary struct {
	Rounds      []roundResult
	MeanUs      float64
	MedianUs    float64
	P99Us       float64
	Throughput  float64
	FinalLen    int
	FinalCommit uint64
}

func benchSchema() *table.Schema {
	return table.NewSchema(
		table.Column{Name: "col_0", Type: table.TypeInteger},
		table.Column{Name: "col_1", Type: table.TypeInteger},
	)
}

// seedRows is the small table every round inserts into.
func seedRows() []table.Row {
	rows := make([]table.Row, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, table.Row{i, i * 10})
	}
	return rows
}

// runBench loads a fresh store, then runs warm-up and measured rounds of insert+commit transactions on it.
func runBench(cfg *config.Config, opts benchOptions, out io.Writer) (*summary, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	params := loader.DefaultParams()
	params.Compressed = cfg.Merge.Compressed
	params.Store.Name = "lin_xxxs"
	store, err := loader.LoadStore(benchSchema(), seedRows(), params)
	if err != nil {
		return nil, err
	}
	manager := txn.NewManager(cfg.Txn)

	var scheduler *storage.MergeScheduler
	if cfg.Merge.AfterCommit && cfg.Merge.Background {
		scheduler = storage.NewMergeScheduler("bench-merge")
		defer scheduler.Stop()
	}
	commitOpts := commands.CommitOptionsFromConfig(cfg.Merge, scheduler)

	var bucket *ratelimit.Bucket
	if opts.Rate > 0 {
		bucket = ratelimit.NewBucketWithRate(opts.Rate, int64(opts.Workers))
	}

	r := &runner{manager: manager, store: store, commitOpts: commitOpts, bucket: bucket, opts: opts}
	for i := 0; i < opts.Warmup; i++ {
		if _, err := r.round(); err != nil {
			return nil, err
		}
		log.Debugf("warm-up round %d done", i)
	}

	s := &summary{}
	var all []float64
	var elapsed time.Duration
	commits := 0
	fmt.Fprintf(out, "%-6s %12s %10s %10s %12s\n", "round", "elapsed", "commits", "conflicts", "mean(us)")
	for i := 0; i < opts.Rounds; i++ {
		res, err := r.round()
		if err != nil {
			return nil, err
		}
		mean, _ := stats.Mean(res.Latencies)
		fmt.Fprintf(out, "%-6d %12s %10d %10d %12.2f\n", i, res.Elapsed, res.Commits, res.Conflicts, mean)
		s.Rounds = append(s.Rounds, res)
		all = append(all, res.Latencies...)
		elapsed += res.Elapsed
		commits += res.Commits
	}

	if s.MeanUs, err = stats.Mean(all); err != nil {
		return nil, errors.Trace(err)
	}
	if s.MedianUs, err = stats.Median(all); err != nil {
		return nil, errors.Trace(err)
	}
	if s.P99Us, err = stats.Percentile(all, 99); err != nil {
		return nil, errors.Trace(err)
	}
	if elapsed > 0 {
		s.Throughput = float64(commits) / elapsed.Seconds()
	}
	s.FinalLen = store.Len()
	s.FinalCommit = manager.LastCommitID()
	fmt.Fprintf(out, "mean %.2fus, median %.2fus, p99 %.2fus, %.0f txn/s, %d rows in store\n",
		s.MeanUs, s.MedianUs, s.P99Us, s.Throughput, s.FinalLen)
	return s, nil
}

type runner struct {
	manager    *txn.Manager
	store      *storage.Store
	commitOpts commands.CommitOptions
	bucket     *ratelimit.Bucket
	opts       benchOptions
}

func (r *runner) round() (roundResult, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		res      roundResult
		firstErr error
	)
	res.Latencies = make([]float64, 0, r.opts.Iterations)
	start := time.Now()
	for w := 0; w < r.opts.Workers; w++ {
		n := r.opts.Iterations / r.opts.Workers
		if w < r.opts.Iterations%r.opts.Workers {
			n++
		}
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			latencies := make([]float64, 0, n)
			commits, conflicts := 0, 0
			var err error
			for i := 0; i < n; i++ {
				if r.bucket != nil {
					r.bucket.Wait(1)
				}
				begin := time.Now()
				var conflict bool
				if conflict, err = r.transaction(); err != nil {
					break
				}
				latencies = append(latencies, float64(time.Since(begin).Nanoseconds())/1e3)
				if conflict {
					conflicts++
				} else {
					commits++
				}
			}
			mu.Lock()
			defer mu.Unlock()
			res.Latencies = append(res.Latencies, latencies...)
			res.Commits += commits
			res.Conflicts += conflicts
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(n)
	}
	wg.Wait()
	res.Elapsed = time.Since(start)
	return res, firstErr
}

// transaction inserts the single benchmark row and commits. It reports conflicts separately from failures.
func (r *runner) transaction() (conflict bool, err error) {
	ctx := r.manager.BuildContext()
	if _, err = commands.RunCommand(commands.NewInsertScan(ctx, r.store, []table.Row{{99, 999}}), r.manager); err != nil {
		return false, err
	}
	_, err = commands.RunCommand(commands.NewCommit(ctx, []*storage.Store{r.store}, r.commitOpts), r.manager)
	if txn.IsConflict(err) {
		return true, nil
	}
	return false, err
}
