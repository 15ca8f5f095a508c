package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func intRows(values ...int64) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = Row{v}
	}
	return rows
}

func firstColumn(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[0]
	}
	return out
}

func TestSortOrderCompare(t *testing.T) {
	asc := NewSortOrder(SortColumn{Index: 0})
	assert.Equal(t, -1, asc.Compare(Row{int64(1)}, Row{int64(2)}))
	assert.Equal(t, 0, asc.Compare(Row{int64(2)}, Row{int64(2)}))

	desc := NewSortOrder(SortColumn{Index: 0, Descending: true})
	assert.Equal(t, 1, desc.Compare(Row{int64(1)}, Row{int64(2)}))
}

func TestSortOrderNullPlacement(t *testing.T) {
	nullsFirst := NewSortOrder(SortColumn{Index: 0})
	assert.Equal(t, -1, nullsFirst.Compare(Row{nil}, Row{int64(1)}))
	assert.Equal(t, 1, nullsFirst.Compare(Row{int64(1)}, Row{nil}))
	assert.Equal(t, 0, nullsFirst.Compare(Row{nil}, Row{nil}))

	nullsLast := NewSortOrder(SortColumn{Index: 0, NullsLast: true})
	assert.Equal(t, 1, nullsLast.Compare(Row{nil}, Row{int64(1)}))

	// Descending does not flip null placement.
	descNullsLast := NewSortOrder(SortColumn{Index: 0, Descending: true, NullsLast: true})
	assert.Equal(t, 1, descNullsLast.Compare(Row{nil}, Row{int64(1)}))
}

func TestSortOrderMultiColumn(t *testing.T) {
	s := NewSortOrder(SortColumn{Index: 0}, SortColumn{Index: 1, Descending: true})
	rows := []Row{
		{int64(1), "a"},
		{int64(0), "a"},
		{int64(1), "b"},
	}
	s.Sort(rows)
	assert.Equal(t, Row{int64(0), "a"}, rows[0])
	assert.Equal(t, Row{int64(1), "b"}, rows[1])
	assert.Equal(t, Row{int64(1), "a"}, rows[2])
}

func TestCollatedSortOrder(t *testing.T) {
	s := NewCollatedSortOrder(language.English, SortColumn{Index: 0})
	// Case-insensitive-ish collation: "apple" before "Banana" even though
	// byte order puts uppercase first.
	assert.Equal(t, -1, s.Compare(Row{"apple"}, Row{"Banana"}))
}

func TestSortWithLimitMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSortOrder(SortColumn{Index: 0})
	for _, size := range []int{0, 1, 2, 7, 50, 200} {
		for _, offset := range []int{0, 1, 3, 10} {
			for _, limit := range []int{-1, 0, 1, 5, 100} {
				values := make([]int64, size)
				for i := range values {
					values[i] = int64(rng.Intn(40))
				}
				full := intRows(values...)
				partial := intRows(values...)
				s.Sort(full)
				s.SortWithLimit(partial, offset, limit)

				n := len(full)
				if limit >= 0 && offset+limit < n {
					n = offset + limit
				}
				require.Equal(t, firstColumn(full[:n]), firstColumn(partial[:n]),
					"size=%d offset=%d limit=%d", size, offset, limit)
			}
		}
	}
}
