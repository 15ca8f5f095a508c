// Package store defines the external row store boundary: overflow storage
// for result rows past the in-memory budget. A store is constructed with
// the distinct flag and sort order it must maintain internally, so that
// iteration returns rows already deduplicated and ordered; the result
// core never re-sorts spilled data.
package store

import "github.com/kasuganosora/resultset/pkg/result/domain"

// ExternalResult is a handle to spilled row storage.
//
// AddRow/AddRows return the new logical row count (for a distinct store an
// insert that replaced an existing member does not grow the count).
// Next returns a nil row at end of data. Contains and RemoveRow are only
// meaningful when the store was created distinct. Close is idempotent and
// refcount-aware: a handle obtained from CreateShallowCopy shares the
// underlying storage, and the backing resource is released exactly once
// when the last handle closes.
type ExternalResult interface {
	AddRow(row domain.Row) (int, error)
	AddRows(rows []domain.Row) (int, error)
	Next() (domain.Row, error)
	Reset() error
	Contains(row domain.Row) (bool, error)
	RemoveRow(row domain.Row) (int, error)
	CreateShallowCopy() ExternalResult
	Close() error
}

// CreateSpec carries everything a backend needs to build a store for one
// result.
type CreateSpec struct {
	Columns            []domain.ColumnExpr
	VisibleColumnCount int
	Distinct           bool
	Sort               *domain.SortOrder
	// Dir is the spill directory. Backends fall back to their configured
	// directory (or an in-memory mode) when empty.
	Dir string
}

// Factory builds external results for one backend.
type Factory interface {
	Name() string
	Create(spec *CreateSpec) (ExternalResult, error)
}
