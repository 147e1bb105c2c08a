package storage

import (
	"sync"

	"github.com/pingcap-incubator/tinycol/col/util/worker"
	"github.com/pingcap-incubator/tinycol/log"
)

type mergeTask struct {
	store *Store
}

type flushTask struct {
	done chan struct{}
}

// MergeScheduler runs MergeIfNeeded for stores on a background worker, one store at a time.
type MergeScheduler struct {
	wg     sync.WaitGroup
	worker *worker.Worker
}

func NewMergeScheduler(name string) *MergeScheduler {
	s := &MergeScheduler{}
	s.worker = worker.NewWorker(name, &s.wg)
	s.worker.Start(&mergeHandler{})
	return s
}

// Schedule queues a merge check of store. It returns false, dropping the request, when the queue is full; the next
// commit on the store schedules another check anyway.
func (s *MergeScheduler) Schedule(store *Store) bool {
	if !s.worker.TrySend(mergeTask{store: store}) {
		log.Debugf("merge scheduler %s: queue full, drop merge of store %s", s.worker.Name(), store.Name())
		return false
	}
	return true
}

// Flush blocks until every merge queued before the call has run.
func (s *MergeScheduler) Flush() {
	done := make(chan struct{})
	s.worker.Sender() <- flushTask{done: done}
	<-done
}

// Stop finishes the queued merges and stops the worker.
func (s *MergeScheduler) Stop() {
	s.worker.Stop()
	s.wg.Wait()
}

type mergeHandler struct{}

func (h *mergeHandler) Handle(t worker.Task) {
	switch task := t.(type) {
	case mergeTask:
		outcome, err := task.store.MergeIfNeeded()
		if err != nil {
			log.Errorf("background merge of store %s failed: %v", task.store.Name(), err)
			return
		}
		log.Debugf("background merge of store %s: %s", task.store.Name(), outcome)
	case flushTask:
		close(task.done)
	default:
		log.Errorf("unexpected merge task %T", t)
	}
}
