// Package result implements local result materialization: it accumulates
// the rows a query produces, enforces DISTINCT, applies ORDER BY, OFFSET
// and LIMIT, and transparently promotes storage from memory to an
// external spill store once the row count exceeds the session's budget.
// The logical behavior (same rows, same order, same dedup) is identical
// whether the data stayed in memory or spilled.
package result

import (
	"fmt"

	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/session"
	"github.com/kasuganosora/resultset/pkg/store"
)

var rowCodec = store.NewRowCodec()

// LocalResult contains all row data of one result set.
//
// Lifecycle: created empty, rows appended via AddRow (build phase, may
// spill), Done called exactly once (finalize), then iterated via
// Next/CurrentRow any number of times with Reset in between, and finally
// Close. During the build phase the in-memory buffer and the external
// store may transiently coexist while overflow is drained; after Done
// exactly one of them is authoritative.
type LocalResult struct {
	sess               *session.Session
	columns            []domain.ColumnExpr
	visibleColumnCount int
	maxMemoryRows      int

	rowID    int
	rowCount int
	rows     []domain.Row

	sort         *domain.SortOrder
	distinctRows *distinctIndex
	currentRow   domain.Row
	offset       int
	limit        int
	external     store.ExternalResult
	diskOffset   int
	distinct     bool
	randomAccess bool
	finalized    bool
	closed       bool
	containsLobs bool
	fetchSize    int
}

// New constructs a local result. columns covers the full row width,
// hidden sort-only columns included; visibleColumnCount is the exposed
// prefix. A nil session disables spilling.
func New(sess *session.Session, columns []domain.ColumnExpr, visibleColumnCount int) *LocalResult {
	maxRows := session.Unbounded
	if sess != nil {
		maxRows = sess.MaxMemoryRows()
	}
	return &LocalResult{
		sess:               sess,
		columns:            columns,
		visibleColumnCount: visibleColumnCount,
		maxMemoryRows:      maxRows,
		rowID:              -1,
		limit:              -1,
		rows:               make([]domain.Row, 0, 8),
	}
}

// IsLazy reports whether rows are produced on demand. A local result is
// always fully materialized.
func (r *LocalResult) IsLazy() bool {
	return false
}

// SetMaxMemoryRows overrides the in-memory row budget for this result.
func (r *LocalResult) SetMaxMemoryRows(maxRows int) {
	r.maxMemoryRows = maxRows
}

// SetSortOrder sets the ordering applied at finalization.
func (r *LocalResult) SetSortOrder(sort *domain.SortOrder) error {
	if err := r.checkBuildPhase("setSortOrder"); err != nil {
		return err
	}
	r.sort = sort
	return nil
}

// SetDistinct enables duplicate elimination over the visible columns.
func (r *LocalResult) SetDistinct() error {
	if err := r.checkBuildPhase("setDistinct"); err != nil {
		return err
	}
	r.distinct = true
	r.distinctRows = newDistinctIndex()
	return nil
}

// SetRandomAccess marks that membership probes (ContainsDistinct) will be
// issued against this result.
func (r *LocalResult) SetRandomAccess() {
	r.randomAccess = true
}

// SetOffset sets the number of leading rows dropped at finalization.
func (r *LocalResult) SetOffset(offset int) error {
	if err := r.checkBuildPhase("setOffset"); err != nil {
		return err
	}
	r.offset = offset
	return nil
}

// SetLimit caps the number of rows this result returns. -1 means no
// limit, 0 means no rows.
func (r *LocalResult) SetLimit(limit int) error {
	if err := r.checkBuildPhase("setLimit"); err != nil {
		return err
	}
	r.limit = limit
	return nil
}

// SetFetchSize records the suggested fetch size. A local result is fully
// materialized, so this only affects what FetchSize reports.
func (r *LocalResult) SetFetchSize(n int) {
	r.fetchSize = n
}

// FetchSize returns the suggested fetch size.
func (r *LocalResult) FetchSize() int {
	return r.fetchSize
}

func (r *LocalResult) checkBuildPhase(op string) error {
	if r.closed {
		return domain.NewErrResultClosed()
	}
	if r.finalized {
		return domain.NewErrInternal("%s called after done", op)
	}
	return nil
}

// cloneLobs copies any transaction-owned large object into result-owned
// storage so the row outlives its producer, registering the copy with the
// session for cleanup.
func (r *LocalResult) cloneLobs(values domain.Row) {
	for i, v := range values {
		lob, ok := v.(*domain.Lob)
		if !ok {
			continue
		}
		copied := lob.CopyToResult()
		if copied != lob {
			r.containsLobs = true
			if r.sess != nil {
				r.sess.AddTemporaryLob(copied)
			}
			values[i] = copied
		}
	}
}

func (r *LocalResult) distinctKey(values domain.Row) ([]byte, error) {
	return rowCodec.DistinctKey(values, r.visibleColumnCount)
}

func (r *LocalResult) createExternalResult() error {
	if r.sess == nil {
		return domain.NewErrInternal("cannot spill without an owning session")
	}
	external, err := r.sess.CreateExternalResult(&store.CreateSpec{
		Columns:            r.columns,
		VisibleColumnCount: r.visibleColumnCount,
		Distinct:           r.distinct,
		Sort:               r.sort,
	})
	if err != nil {
		return fmt.Errorf("create external result: %w", err)
	}
	r.external = external
	return nil
}

// AddRow adds a row of full width to this result. Build phase only.
func (r *LocalResult) AddRow(values domain.Row) error {
	if err := r.checkBuildPhase("addRow"); err != nil {
		return err
	}
	r.cloneLobs(values)

	if r.distinct {
		if r.distinctRows != nil {
			key, err := r.distinctKey(values)
			if err != nil {
				return err
			}
			r.distinctRows.put(key, values)
			r.rowCount = r.distinctRows.size()
			if r.rowCount > r.maxMemoryRows {
				// Promote: membership and counting move to the store.
				if err := r.createExternalResult(); err != nil {
					return err
				}
				n, err := r.external.AddRows(r.distinctRows.values())
				if err != nil {
					return fmt.Errorf("spill distinct rows: %w", err)
				}
				r.rowCount = n
				r.distinctRows = nil
			}
			return nil
		}
		n, err := r.external.AddRow(values)
		if err != nil {
			return fmt.Errorf("add row to external result: %w", err)
		}
		r.rowCount = n
		return nil
	}

	r.rowCount++
	return r.appendWithOverflow(values)
}

// appendWithOverflow appends to the in-memory buffer and flushes the
// whole buffer to the external store once it crosses the budget, creating
// the store on first overflow. Shared between the build phase and the
// finalization drain of a spilled distinct set.
func (r *LocalResult) appendWithOverflow(values domain.Row) error {
	r.rows = append(r.rows, values)
	if len(r.rows) > r.maxMemoryRows {
		if r.external == nil {
			if err := r.createExternalResult(); err != nil {
				return err
			}
		}
		return r.flushBufferToStore()
	}
	return nil
}

func (r *LocalResult) flushBufferToStore() error {
	n, err := r.external.AddRows(r.rows)
	if err != nil {
		return fmt.Errorf("flush rows to external result: %w", err)
	}
	r.rowCount = n
	r.rows = r.rows[:0]
	return nil
}

// Done finalizes the result after all rows have been added: resolves
// pending deduplication, settles spilling, applies ordering, offset and
// limit, and resets the cursor. Called exactly once.
func (r *LocalResult) Done() error {
	if err := r.checkBuildPhase("done"); err != nil {
		return err
	}

	if r.distinct {
		if r.distinctRows != nil {
			r.rows = r.distinctRows.values()
		} else if r.external != nil && r.sort != nil {
			// The distinct set spilled and an order was requested after
			// the store was created without one being applicable to its
			// current shape: drain the deduplicated set and rebuild it
			// through the ordinary overflow path, producing either an
			// ordered in-memory buffer or a fresh store constructed with
			// the sort order.
			if err := r.externalSort(); err != nil {
				return err
			}
		}
		// Spilled distinct with no sort order: the store already holds
		// the deduplicated set as-is.
	}

	if r.external != nil {
		if err := r.flushBufferToStore(); err != nil {
			return err
		}
	} else if r.sort != nil {
		if r.offset > 0 || r.limit >= 0 {
			// Only the leading window will survive offset/limit, so a
			// full comparison sort would be wasted work.
			r.sort.SortWithLimit(r.rows, r.offset, r.limit)
		} else {
			r.sort.Sort(r.rows)
		}
	}

	r.applyOffset()
	r.applyLimit()
	r.finalized = true
	return r.Reset()
}

// externalSort drains a spilled distinct set sequentially and re-inserts
// every row through appendWithOverflow. Deduplication is not applied a
// second time: the drained stream is already a set.
func (r *LocalResult) externalSort() error {
	temp := r.external
	r.external = nil
	if err := temp.Reset(); err != nil {
		temp.Close()
		return fmt.Errorf("reset spilled distinct set: %w", err)
	}
	r.rows = r.rows[:0]
	for {
		row, err := temp.Next()
		if err != nil {
			temp.Close()
			return fmt.Errorf("drain spilled distinct set: %w", err)
		}
		if row == nil {
			break
		}
		if err := r.appendWithOverflow(row); err != nil {
			temp.Close()
			return err
		}
	}
	return temp.Close()
}

func (r *LocalResult) applyOffset() {
	if r.offset <= 0 {
		return
	}
	if r.external == nil {
		if r.offset >= len(r.rows) {
			r.rows = r.rows[:0]
			r.rowCount = 0
		} else {
			r.rows = r.rows[r.offset:]
			r.rowCount -= r.offset
		}
	} else {
		if r.offset >= r.rowCount {
			r.rowCount = 0
		} else {
			// The store is never modified: the skip happens at cursor
			// reset time.
			r.diskOffset = r.offset
			r.rowCount -= r.offset
		}
	}
	// Offset invalidates any resident dedup index.
	r.distinctRows = nil
}

func (r *LocalResult) applyLimit() {
	if r.limit < 0 {
		return
	}
	if r.external == nil {
		if len(r.rows) > r.limit {
			r.rows = r.rows[:r.limit]
			r.rowCount = r.limit
			r.distinctRows = nil
		}
	} else if r.limit < r.rowCount {
		// Tail rows past the limit are simply never read.
		r.rowCount = r.limit
		r.distinctRows = nil
	}
}

// Reset returns the cursor to before the first row. For spilled data this
// rewinds the store and re-skips the disk offset, so it is not free.
func (r *LocalResult) Reset() error {
	if r.closed {
		return domain.NewErrResultClosed()
	}
	r.rowID = -1
	r.currentRow = nil
	if r.external != nil {
		if err := r.external.Reset(); err != nil {
			return fmt.Errorf("reset external result: %w", err)
		}
		for i := 0; i < r.diskOffset; i++ {
			if _, err := r.external.Next(); err != nil {
				return fmt.Errorf("skip offset rows: %w", err)
			}
		}
	}
	return nil
}

// Next advances the cursor. It returns false once the cursor moves past
// the last row.
func (r *LocalResult) Next() (bool, error) {
	if r.closed {
		return false, domain.NewErrResultClosed()
	}
	if r.rowID < r.rowCount {
		r.rowID++
		if r.rowID < r.rowCount {
			if r.external != nil {
				row, err := r.external.Next()
				if err != nil {
					return false, fmt.Errorf("read row from external result: %w", err)
				}
				r.currentRow = row
			} else {
				r.currentRow = r.rows[r.rowID]
			}
			return true, nil
		}
		r.currentRow = nil
	}
	return false, nil
}

// CurrentRow returns the row at the last successful Next.
func (r *LocalResult) CurrentRow() domain.Row {
	return r.currentRow
}

// RowID returns the zero-based position of the current row, -1 before the
// first row.
func (r *LocalResult) RowID() int {
	return r.rowID
}

// RowCount returns the logical row count.
func (r *LocalResult) RowCount() int {
	return r.rowCount
}

// HasNext reports whether another row is available.
func (r *LocalResult) HasNext() bool {
	return !r.closed && r.rowID < r.rowCount-1
}

// IsAfterLast reports whether the cursor moved past the last row.
func (r *LocalResult) IsAfterLast() bool {
	return r.rowID >= r.rowCount
}

// ContainsDistinct checks whether this result contains the given row of
// visible values. Available before finalization: with spilled storage the
// probe is delegated to the store; otherwise the index is built lazily
// from the current buffer on first use.
func (r *LocalResult) ContainsDistinct(values domain.Row) (bool, error) {
	if r.closed {
		return false, domain.NewErrResultClosed()
	}
	if r.external != nil {
		found, err := r.external.Contains(values)
		if err != nil {
			return false, fmt.Errorf("probe external result: %w", err)
		}
		return found, nil
	}
	if r.distinctRows == nil {
		// First probe: index the buffered rows by visible prefix.
		idx := newDistinctIndex()
		for _, row := range r.rows {
			key, err := r.distinctKey(row)
			if err != nil {
				return false, err
			}
			idx.put(key, domain.VisiblePrefix(row, r.visibleColumnCount))
		}
		r.distinctRows = idx
	}
	key, err := r.distinctKey(values)
	if err != nil {
		return false, err
	}
	return r.distinctRows.contains(key), nil
}

// RemoveDistinct removes the row with the given visible values from the
// result, if present. Calling it on a non-distinct result is a contract
// violation.
func (r *LocalResult) RemoveDistinct(values domain.Row) error {
	if !r.distinct {
		return domain.NewErrInternal("removeDistinct on a result without distinct set")
	}
	if r.closed {
		return domain.NewErrResultClosed()
	}
	if r.distinctRows != nil {
		key, err := r.distinctKey(values)
		if err != nil {
			return err
		}
		r.distinctRows.remove(key)
		r.rowCount = r.distinctRows.size()
		return nil
	}
	n, err := r.external.RemoveRow(values)
	if err != nil {
		return fmt.Errorf("remove row from external result: %w", err)
	}
	r.rowCount = n
	return nil
}

// CreateShallowCopy produces a second handle sharing the finalized row
// storage without copying rows. It returns nil, not an error, when
// sharing is not possible: mid-spill buffers, LOB-bearing results, or a
// store that refuses to share. The copy gets a fresh cursor and no
// offset/limit of its own; those are already baked into rowCount and
// diskOffset.
func (r *LocalResult) CreateShallowCopy(target *session.Session) *LocalResult {
	if !r.finalized || r.closed {
		return nil
	}
	if r.external == nil && (r.rows == nil || len(r.rows) < r.rowCount) {
		return nil
	}
	if r.containsLobs {
		return nil
	}
	var external store.ExternalResult
	if r.external != nil {
		external = r.external.CreateShallowCopy()
		if external == nil {
			return nil
		}
	}
	c := &LocalResult{
		sess:               target,
		columns:            r.columns,
		visibleColumnCount: r.visibleColumnCount,
		maxMemoryRows:      r.maxMemoryRows,
		rowID:              -1,
		rowCount:           r.rowCount,
		rows:               r.rows,
		sort:               r.sort,
		distinctRows:       r.distinctRows,
		offset:             0,
		limit:              -1,
		external:           external,
		diskOffset:         r.diskOffset,
		distinct:           r.distinct,
		randomAccess:       r.randomAccess,
		finalized:          true,
	}
	if err := c.Reset(); err != nil {
		if external != nil {
			external.Close()
		}
		return nil
	}
	return c
}

// NeedsClose reports whether the result holds an external store.
func (r *LocalResult) NeedsClose() bool {
	return r.external != nil
}

// Close releases the external store handle, if any. Safe to call more
// than once; the underlying resource is released exactly once.
func (r *LocalResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.external != nil {
		external := r.external
		r.external = nil
		if err := external.Close(); err != nil {
			return fmt.Errorf("close external result: %w", err)
		}
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (r *LocalResult) IsClosed() bool {
	return r.closed
}

// VisibleColumnCount returns the number of exposed columns.
func (r *LocalResult) VisibleColumnCount() int {
	return r.visibleColumnCount
}

// Column metadata passthrough.

func (r *LocalResult) Alias(i int) string      { return r.columns[i].Alias() }
func (r *LocalResult) TableName(i int) string  { return r.columns[i].TableName() }
func (r *LocalResult) SchemaName(i int) string { return r.columns[i].SchemaName() }
func (r *LocalResult) DisplaySize(i int) int   { return r.columns[i].DisplaySize() }
func (r *LocalResult) ColumnName(i int) string { return r.columns[i].ColumnName() }
func (r *LocalResult) ColumnType(i int) string { return r.columns[i].ColumnType() }
func (r *LocalResult) Precision(i int) int64   { return r.columns[i].Precision() }
func (r *LocalResult) Nullable(i int) bool     { return r.columns[i].Nullable() }
func (r *LocalResult) AutoIncrement(i int) bool { return r.columns[i].AutoIncrement() }
func (r *LocalResult) Scale(i int) int         { return r.columns[i].Scale() }

// String returns a diagnostic description.
func (r *LocalResult) String() string {
	return fmt.Sprintf("LocalResult columns: %d rows: %d pos: %d",
		r.visibleColumnCount, r.rowCount, r.rowID)
}
