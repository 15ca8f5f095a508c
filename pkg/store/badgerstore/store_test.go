package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/store"
)

func testColumns() []domain.ColumnExpr {
	return []domain.ColumnExpr{
		&domain.ColumnInfo{Name: "id", Type: "BIGINT"},
		&domain.ColumnInfo{Name: "name", Type: "TEXT"},
	}
}

func createStore(t *testing.T, spec *store.CreateSpec) store.ExternalResult {
	t.Helper()
	f := NewFactory(DefaultConfig(""), nil)
	s, err := f.Create(spec)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func drain(t *testing.T, s store.ExternalResult) []domain.Row {
	t.Helper()
	var out []domain.Row
	for {
		row, err := s.Next()
		require.NoError(t, err)
		if row == nil {
			return out
		}
		out = append(out, row)
	}
}

func TestFactoryName(t *testing.T) {
	f := NewFactory(nil, nil)
	assert.Equal(t, "badger", f.Name())
}

func TestInsertionOrderWithoutSort(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})

	n, err := s.AddRow(domain.Row{int64(3), "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddRows([]domain.Row{{int64(1), "a"}, {int64(2), "b"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := drain(t, s)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0][0])
	assert.Equal(t, int64(1), rows[1][0])
	assert.Equal(t, int64(2), rows[2][0])
}

func TestSortedIteration(t *testing.T) {
	sort := domain.NewSortOrder(domain.SortColumn{Index: 0, Descending: true})
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2, Sort: sort})

	_, err := s.AddRows([]domain.Row{
		{int64(2), "b"},
		{int64(9), "z"},
		{int64(5), "e"},
	})
	require.NoError(t, err)

	rows := drain(t, s)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(9), rows[0][0])
	assert.Equal(t, int64(5), rows[1][0])
	assert.Equal(t, int64(2), rows[2][0])
}

func TestResetRestartsIteration(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})
	_, err := s.AddRows([]domain.Row{{int64(1), "a"}, {int64(2), "b"}})
	require.NoError(t, err)

	first := drain(t, s)
	require.NoError(t, s.Reset())
	second := drain(t, s)
	assert.Equal(t, first, second)
}

func TestDistinctReplaceKeepsCount(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2, Distinct: true})

	n, err := s.AddRow(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddRow(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddRow(domain.Row{int64(2), "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Len(t, drain(t, s), 2)
}

func TestDistinctHiddenColumnExcluded(t *testing.T) {
	// Three columns, two visible: the third is a hidden sort column and
	// must not participate in dedup.
	columns := append(testColumns(), &domain.ColumnInfo{Name: "rank", Type: "BIGINT"})
	s := createStore(t, &store.CreateSpec{Columns: columns, VisibleColumnCount: 2, Distinct: true})

	n, err := s.AddRow(domain.Row{int64(1), "a", int64(10)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddRow(domain.Row{int64(1), "a", int64(20)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestContainsAndRemove(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2, Distinct: true})
	_, err := s.AddRow(domain.Row{int64(1), "a"})
	require.NoError(t, err)

	found, err := s.Contains(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.Contains(domain.Row{int64(2), "b"})
	require.NoError(t, err)
	assert.False(t, found)

	n, err := s.RemoveRow(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	found, err = s.Contains(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent row is a no-op.
	n, err = s.RemoveRow(domain.Row{int64(9), "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestContainsOnNonDistinctFails(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})
	_, err := s.Contains(domain.Row{int64(1), "a"})
	require.Error(t, err)
	assert.True(t, domain.IsInternal(err))
	_, err = s.RemoveRow(domain.Row{int64(1), "a"})
	require.Error(t, err)
	assert.True(t, domain.IsInternal(err))
}

func TestShallowCopyIteratesIndependently(t *testing.T) {
	s := createStore(t, &store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})
	_, err := s.AddRows([]domain.Row{{int64(1), "a"}, {int64(2), "b"}})
	require.NoError(t, err)

	copied := s.CreateShallowCopy()
	require.NotNil(t, copied)

	row, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), row[0])

	// The copy starts from the beginning regardless of the source cursor.
	row, err = copied.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), row[0])

	// Closing the source keeps the copy usable.
	require.NoError(t, s.Close())
	row, err = copied.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), row[0])
	require.NoError(t, copied.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	f := NewFactory(DefaultConfig(""), nil)
	s, err := f.Create(&store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Next()
	assert.Error(t, err)
}

func TestDiskBackedStore(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(DefaultConfig(dir), nil)
	s, err := f.Create(&store.CreateSpec{Columns: testColumns(), VisibleColumnCount: 2})
	require.NoError(t, err)

	_, err = s.AddRow(domain.Row{int64(1), "a"})
	require.NoError(t, err)
	rows := drain(t, s)
	require.Len(t, rows, 1)
	require.NoError(t, s.Close())
}
