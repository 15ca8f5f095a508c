package domain

// ColumnExpr is the read-only column metadata contract consumed by a
// result. The query engine that produced the rows supplies one entry per
// column, hidden sort-only columns included.
type ColumnExpr interface {
	Alias() string
	TableName() string
	SchemaName() string
	DisplaySize() int
	ColumnName() string
	ColumnType() string
	Precision() int64
	Nullable() bool
	AutoIncrement() bool
	Scale() int
}

// ColumnInfo is a plain-struct implementation of ColumnExpr, convenient to
// build from driver metadata or by literal.
type ColumnInfo struct {
	Name      string
	AliasName string
	Table     string
	Schema    string
	Type      string
	Size      int
	Prec      int64
	Digits    int
	IsNullable bool
	IsAutoInc  bool
}

func (c *ColumnInfo) Alias() string {
	if c.AliasName != "" {
		return c.AliasName
	}
	return c.Name
}

func (c *ColumnInfo) TableName() string  { return c.Table }
func (c *ColumnInfo) SchemaName() string { return c.Schema }
func (c *ColumnInfo) DisplaySize() int   { return c.Size }
func (c *ColumnInfo) ColumnName() string { return c.Name }
func (c *ColumnInfo) ColumnType() string { return c.Type }
func (c *ColumnInfo) Precision() int64   { return c.Prec }
func (c *ColumnInfo) Nullable() bool     { return c.IsNullable }
func (c *ColumnInfo) AutoIncrement() bool { return c.IsAutoInc }
func (c *ColumnInfo) Scale() int         { return c.Digits }
