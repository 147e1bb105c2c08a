package latches

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

// Latching makes the validate-then-commit step of a transaction atomic with respect to other commits touching the
// same unique keys. Two commits which wrote the same key must not both pass validation before either of them has
// published its commit, otherwise both would believe they were first.
//
// A latch is a per-key lock. Keys are hashed into slots with farmhash, so two different keys may share a latch; that
// only costs some concurrency, never correctness. Only one thread can hold a latch at a time and all keys that a
// commit needs must be latched at once.
//
// Latching is implemented using a single map which maps slots to a Go WaitGroup. Access to this map is guarded by a
// mutex to ensure that latching is atomic and consistent.

type Latches struct {
	// Before validating a key, the thread must have the latch for that key's slot. `Latches` maps each latched slot
	// to a WaitGroup. Threads who find a slot locked should wait on that WaitGroup.
	latchMap map[uint64]*sync.WaitGroup
	// Mutex to guard latchMap. A thread must hold this mutex while it makes any change to latchMap.
	latchGuard sync.Mutex
}

// NewLatches creates a new Latches object. There should only be one such object per transaction manager, shared
// between all threads.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[uint64]*sync.WaitGroup)
	return l
}

func slot(key []byte) uint64 {
	return farm.Fingerprint64(key)
}

// AcquireLatches tries to lock all latches specified by keys. If this succeeds, nil is returned. If any of the keys
// are locked, then AcquireLatches returns a WaitGroup which the thread can use to be woken when the lock is free.
func (l *Latches) AcquireLatches(keysToLatch [][]byte) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	// Check none of the keys we want are locked.
	for _, key := range keysToLatch {
		if latchWg, ok := l.latchMap[slot(key)]; ok {
			return latchWg
		}
	}

	// All latches are available, lock them all with a new wait group.
	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, key := range keysToLatch {
		l.latchMap[slot(key)] = wg
	}

	return nil
}

// ReleaseLatches releases the latches for all keys in keysToUnlatch. It will wakeup any threads blocked on one of the
// latches. All keys in keysToUnlatch must have been locked together in one call to AcquireLatches.
func (l *Latches) ReleaseLatches(keysToUnlatch [][]byte) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	first := true
	for _, key := range keysToUnlatch {
		s := slot(key)
		if first {
			if wg, ok := l.latchMap[s]; ok {
				wg.Done()
			}
			first = false
		}
		delete(l.latchMap, s)
	}
}

// WaitForLatches attempts to lock all keys in keysToLatch using AcquireLatches. If a latch is already locked, then
// WaitForLatches will wait for it to become unlocked then try again. Therefore WaitForLatches may block for an
// unbounded length of time.
func (l *Latches) WaitForLatches(keysToLatch [][]byte) {
	if len(keysToLatch) == 0 {
		return
	}
	for {
		wg := l.AcquireLatches(keysToLatch)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}
