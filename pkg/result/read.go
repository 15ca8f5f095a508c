package result

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/session"
)

// Read materializes a database/sql row stream into a local result,
// consuming rows until exhaustion. maxRows caps the materialized count
// (-1 for no cap). The returned result is finalized and ready to
// iterate; the caller still owns rows and must close it.
func Read(sess *session.Session, rows *sql.Rows, maxRows int) (*LocalResult, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	columns := make([]domain.ColumnExpr, len(columnTypes))
	for i, ct := range columnTypes {
		info := &domain.ColumnInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			info.IsNullable = nullable
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			info.Prec = precision
			info.Digits = int(scale)
		} else if length, ok := ct.Length(); ok {
			info.Prec = length
		}
		columns[i] = info
	}

	res := New(sess, columns, len(columns))
	if maxRows >= 0 {
		if err := res.SetLimit(maxRows); err != nil {
			return nil, err
		}
	}

	dest := make([]any, len(columns))
	for i := range dest {
		dest[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			res.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(domain.Row, len(dest))
		for i, d := range dest {
			row[i] = normalizeScanned(*d.(*any))
		}
		if err := res.AddRow(row); err != nil {
			res.Close()
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		res.Close()
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if err := res.Done(); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

// normalizeScanned maps driver scan values onto the value domain. Byte
// slices are copied: drivers may reuse the backing array between rows.
func normalizeScanned(v any) any {
	switch x := v.(type) {
	case []byte:
		buf := make([]byte, len(x))
		copy(buf, x)
		return buf
	case time.Time:
		return x
	default:
		return domain.NormalizeValue(v)
	}
}
