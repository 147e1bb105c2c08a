package storage

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
	"github.com/pingcap-incubator/tinycol/col/util/codec"
)

type keyEntry struct {
	key     []byte
	writers []uint64
}

func keyLess(a, b *keyEntry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// keyIndex remembers which transactions wrote each unique key of a store. Writers are never removed on commit, so a
// key written by a committed transaction stays claimed.
type keyIndex struct {
	mu   sync.Mutex
	tree *btree.BTreeG[*keyEntry]
	// pending holds the keys of transactions which did not validate yet.
	pending map[uint64][][]byte
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		tree:    btree.NewG[*keyEntry](32, keyLess),
		pending: make(map[uint64][][]byte),
	}
}

// claim records txnID as a writer of keys. It claims nothing and returns the offending key when keys repeat
// within the batch or txnID already wrote one of them.
func (ki *keyIndex) claim(txnID uint64, keys [][]byte) (dup []byte, ok bool) {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, repeated := seen[string(key)]; repeated {
			return key, false
		}
		seen[string(key)] = struct{}{}
		if entry, found := ki.tree.Get(&keyEntry{key: key}); found && containsID(entry.writers, txnID) {
			return key, false
		}
	}
	for _, key := range keys {
		ki.addWriterLocked(key, txnID)
	}
	ki.pending[txnID] = append(ki.pending[txnID], keys...)
	return nil, true
}

// seed records rows which are part of a store from the start, writers[i] being the writer of keys[i]. Seeded keys
// are never validated. A key seeded twice is returned as a duplicate and nothing is recorded.
func (ki *keyIndex) seed(writers []uint64, keys [][]byte) (dup []byte, ok bool) {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, repeated := seen[string(key)]; repeated {
			return key, false
		}
		seen[string(key)] = struct{}{}
	}
	for i, key := range keys {
		ki.addWriterLocked(key, writers[i])
	}
	return nil, true
}

func (ki *keyIndex) addWriterLocked(key []byte, txnID uint64) {
	entry, found := ki.tree.Get(&keyEntry{key: key})
	if !found {
		entry = &keyEntry{key: key}
		ki.tree.ReplaceOrInsert(entry)
	}
	if !containsID(entry.writers, txnID) {
		entry.writers = append(entry.writers, txnID)
	}
}

// validate returns the first key of txnID already written by a transaction the oracle considers committed. It
// forgets the pending keys of txnID when there is none.
func (ki *keyIndex) validate(txnID uint64, oracle mvcc.Oracle) (key []byte, writer uint64, conflict bool) {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	for _, k := range ki.pending[txnID] {
		entry, ok := ki.tree.Get(&keyEntry{key: k})
		if !ok {
			continue
		}
		for _, w := range entry.writers {
			if w == txnID {
				continue
			}
			if _, committed := oracle.Resolve(w); committed {
				return k, w, true
			}
		}
	}
	delete(ki.pending, txnID)
	return nil, 0, false
}

// release drops every pending claim of txnID.
func (ki *keyIndex) release(txnID uint64) {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	for _, k := range ki.pending[txnID] {
		entry, ok := ki.tree.Get(&keyEntry{key: k})
		if !ok {
			continue
		}
		entry.writers = removeID(entry.writers, txnID)
		if len(entry.writers) == 0 {
			ki.tree.Delete(entry)
		}
	}
	delete(ki.pending, txnID)
}

// Len is the number of distinct keys claimed.
func (ki *keyIndex) Len() int {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	return ki.tree.Len()
}

func containsID(ids []uint64, id uint64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []uint64, id uint64) []uint64 {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// formatKey renders an encoded key for error messages.
func formatKey(key []byte) string {
	values, err := codec.DecodeKey(key)
	if err != nil {
		return fmt.Sprintf("%x", key)
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
