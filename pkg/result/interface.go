package result

import (
	"github.com/kasuganosora/resultset/pkg/result/domain"
)

// Result is the query-result surface exposed to downstream consumers:
// forward-only, restartable iteration over a finalized row set plus
// column metadata passthrough.
type Result interface {
	// Next advances the cursor by one row and reports whether a row is
	// available.
	Next() (bool, error)

	// CurrentRow returns the row at the last successful Next, or nil
	// before the first call and after exhaustion.
	CurrentRow() domain.Row

	// Reset returns the cursor to before the first row.
	Reset() error

	// RowCount returns the logical row count with dedup, spill, offset
	// and limit already applied.
	RowCount() int

	// HasNext reports whether another row is available without moving
	// the cursor.
	HasNext() bool

	// IsAfterLast reports whether the cursor has moved past the last row.
	IsAfterLast() bool

	// RowID returns the zero-based position of the current row, -1
	// before the first row.
	RowID() int

	// VisibleColumnCount returns the number of columns exposed to
	// consumers; the row width may be larger (hidden sort columns).
	VisibleColumnCount() int

	// Column metadata passthrough, one call per column index.
	Alias(i int) string
	TableName(i int) string
	SchemaName(i int) string
	DisplaySize(i int) int
	ColumnName(i int) string
	ColumnType(i int) string
	Precision(i int) int64
	Nullable(i int) bool
	AutoIncrement(i int) bool
	Scale(i int) int

	// NeedsClose reports whether the result holds an external store that
	// must be released.
	NeedsClose() bool

	// Close releases the external store, if any. Safe to call more than
	// once.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// Target is the build-phase surface the query executor drives: configure,
// feed rows, finalize.
type Target interface {
	SetDistinct() error
	SetSortOrder(sort *domain.SortOrder) error
	SetOffset(offset int) error
	SetLimit(limit int) error
	AddRow(values domain.Row) error
	Done() error
}

var (
	_ Result = (*LocalResult)(nil)
	_ Target = (*LocalResult)(nil)
)
