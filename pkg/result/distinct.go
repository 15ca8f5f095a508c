package result

import (
	"github.com/kasuganosora/resultset/pkg/result/domain"
)

// distinctIndex is the in-memory dedup index: an insertion-ordered hash
// map from the encoded visible-column prefix to the stored row. The
// insertion order only matters as a stable extraction order for values();
// the real output order is re-imposed by the sort step during
// finalization.
type distinctIndex struct {
	positions map[string]int
	entries   []distinctEntry
	live      int
}

type distinctEntry struct {
	key string
	row domain.Row
}

func newDistinctIndex() *distinctIndex {
	return &distinctIndex{positions: make(map[string]int)}
}

// put inserts or replaces the row stored under key.
func (d *distinctIndex) put(key []byte, row domain.Row) {
	k := string(key)
	if pos, ok := d.positions[k]; ok {
		d.entries[pos].row = row
		return
	}
	d.positions[k] = len(d.entries)
	d.entries = append(d.entries, distinctEntry{key: k, row: row})
	d.live++
}

// remove deletes the row stored under key, if present. Removed slots stay
// as tombstones so positions remain stable.
func (d *distinctIndex) remove(key []byte) {
	k := string(key)
	pos, ok := d.positions[k]
	if !ok {
		return
	}
	delete(d.positions, k)
	d.entries[pos].row = nil
	d.live--
}

// contains reports membership of key.
func (d *distinctIndex) contains(key []byte) bool {
	_, ok := d.positions[string(key)]
	return ok
}

// size returns the number of live rows.
func (d *distinctIndex) size() int {
	return d.live
}

// values returns the live rows in insertion order.
func (d *distinctIndex) values() []domain.Row {
	rows := make([]domain.Row, 0, d.live)
	for _, e := range d.entries {
		if e.row != nil {
			rows = append(rows, e.row)
		}
	}
	return rows
}
