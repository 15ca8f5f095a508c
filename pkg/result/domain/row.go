package domain

// Row is one result tuple: an ordered, fixed-width sequence of values.
// The width is the total column count, visible columns first, followed by
// hidden columns that only exist to support ORDER BY on expressions that
// are not part of the projection.
//
// Supported value types: nil, bool, int64, float64, string, []byte,
// time.Time and *Lob. Smaller integer and float kinds are accepted and
// normalized by the codecs. A row is treated as immutable once it has been
// handed to a result.
type Row []any

// VisiblePrefix returns the first n values of the row, the dedup key used
// for DISTINCT semantics. Rows that differ only in hidden sort columns
// share the same visible prefix.
func VisiblePrefix(row Row, n int) Row {
	if len(row) > n {
		return row[:n]
	}
	return row
}
