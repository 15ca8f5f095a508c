package domain

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortColumn describes one ORDER BY term. Index addresses the full row
// width, so hidden sort-only columns are reachable.
type SortColumn struct {
	Index      int
	Descending bool
	NullsLast  bool
}

// SortOrder is an externally supplied ordering specification: a list of
// sort columns and an optional collator for string values.
type SortOrder struct {
	Columns  []SortColumn
	Collator *collate.Collator
}

// NewSortOrder builds a sort order over the given columns with byte-order
// string comparison.
func NewSortOrder(columns ...SortColumn) *SortOrder {
	return &SortOrder{Columns: columns}
}

// NewCollatedSortOrder builds a sort order whose string comparisons follow
// the collation rules of the given language tag.
func NewCollatedSortOrder(tag language.Tag, columns ...SortColumn) *SortOrder {
	return &SortOrder{Columns: columns, Collator: collate.New(tag)}
}

// Compare compares two rows under this order. Null placement is decided by
// the per-column NullsLast flag and is not affected by Descending.
func (s *SortOrder) Compare(a, b Row) int {
	for _, col := range s.Columns {
		av, bv := a[col.Index], b[col.Index]
		aNull, bNull := av == nil, bv == nil
		if aNull || bNull {
			if aNull && bNull {
				continue
			}
			if aNull != (col.NullsLast) {
				return -1
			}
			return 1
		}
		cmp := CompareCollate(s.Collator, av, bv)
		if cmp == 0 {
			continue
		}
		if col.Descending {
			return -cmp
		}
		return cmp
	}
	return 0
}

// Sort sorts rows in place, fully.
func (s *SortOrder) Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return s.Compare(rows[i], rows[j]) < 0
	})
}

// SortWithLimit partially sorts rows in place so that rows[0:offset+limit]
// are the smallest offset+limit rows in correct order. The order of the
// remaining rows is unspecified. A negative limit sorts fully. This is the
// cheap path for ORDER BY with OFFSET/LIMIT: a full comparison sort is
// wasted work when only a small leading window is read.
func (s *SortOrder) SortWithLimit(rows []Row, offset, limit int) {
	if limit < 0 {
		s.Sort(rows)
		return
	}
	n := offset + limit
	if n >= len(rows) {
		s.Sort(rows)
		return
	}
	if n <= 0 {
		return
	}
	// Heap-select: keep the smallest n rows in a max-heap occupying
	// rows[0:n], replacing the current maximum whenever a smaller row
	// shows up. All rows stay in the slice, displaced ones move past n.
	for i := n/2 - 1; i >= 0; i-- {
		s.siftDown(rows, i, n)
	}
	for i := n; i < len(rows); i++ {
		if s.Compare(rows[i], rows[0]) < 0 {
			rows[i], rows[0] = rows[0], rows[i]
			s.siftDown(rows, 0, n)
		}
	}
	// Pop the max-heap back to front to leave rows[0:n] ascending.
	for end := n - 1; end > 0; end-- {
		rows[0], rows[end] = rows[end], rows[0]
		s.siftDown(rows, 0, end)
	}
}

func (s *SortOrder) siftDown(rows []Row, root, end int) {
	for {
		child := 2*root + 1
		if child >= end {
			return
		}
		if child+1 < end && s.Compare(rows[child+1], rows[child]) > 0 {
			child++
		}
		if s.Compare(rows[child], rows[root]) <= 0 {
			return
		}
		rows[root], rows[child] = rows[child], rows[root]
		root = child
	}
}
