package storage

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/pingcap-incubator/tinycol/col/table"
	"github.com/pingcap-incubator/tinycol/col/transaction/mvcc"
)

type positionsFunc func(vt *mvcc.VersionedTable) *roaring.Bitmap

// RowIterator walks the visible rows of a fixed list of partitions in order. Position lists are computed lazily, one
// partition at a time, and kept so the iterator can be restarted with Reset. Iterating never changes the store.
// A RowIterator is not safe for concurrent use.
type RowIterator struct {
	parts     []*mvcc.VersionedTable
	positions []*roaring.Bitmap
	compute   positionsFunc

	part int
	iter roaring.IntIterable
	cur  table.Row
	done bool
}

func newRowIterator(parts []*mvcc.VersionedTable, compute positionsFunc) *RowIterator {
	return &RowIterator{
		parts:     parts,
		positions: make([]*roaring.Bitmap, len(parts)),
		compute:   compute,
	}
}

func (it *RowIterator) positionsOf(part int) *roaring.Bitmap {
	if it.positions[part] == nil {
		it.positions[part] = it.compute(it.parts[part])
	}
	return it.positions[part]
}

// Next advances to the next visible row and reports whether there is one.
func (it *RowIterator) Next() bool {
	if it.done {
		return false
	}
	for it.part < len(it.parts) {
		if it.iter == nil {
			it.iter = it.positionsOf(it.part).Iterator()
		}
		if it.iter.HasNext() {
			it.cur = it.parts[it.part].Row(int(it.iter.Next()))
			return true
		}
		it.part++
		it.iter = nil
	}
	it.cur = nil
	it.done = true
	return false
}

// Row returns the current row. It is only valid after Next returned true.
func (it *RowIterator) Row() table.Row {
	return it.cur
}

// Reset rewinds the iterator to the first visible row.
func (it *RowIterator) Reset() {
	it.part = 0
	it.iter = nil
	it.cur = nil
	it.done = false
}

// Count returns the number of visible rows without materialising them.
func (it *RowIterator) Count() int {
	n := 0
	for i := range it.parts {
		n += int(it.positionsOf(i).GetCardinality())
	}
	return n
}

// Rows rewinds the iterator and collects every visible row.
func (it *RowIterator) Rows() []table.Row {
	it.Reset()
	var rows []table.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	it.Reset()
	return rows
}

func allRows(n int) *roaring.Bitmap {
	bm := roaring.NewBitmap()
	bm.AddRange(0, uint64(n))
	return bm
}
