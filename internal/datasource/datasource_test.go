package datasource

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSample(t *testing.T, seed bool, rowLimit int) *DataSource {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "sample.db")
	require.NoError(t, CreateSample(ctx, path, seed))
	ds, err := Open(ctx, Config{Driver: "sqlite", DSN: path, RowLimit: rowLimit}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil)
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestLookupDialectAliases(t *testing.T) {
	for alias, want := range map[string]string{
		"sqlite3": "sqlite", "PostgreSQL": "postgres", "pg": "postgres",
		"mssql": "sqlserver", "mysql": "mysql",
	} {
		d, ok := LookupDialect(alias)
		require.True(t, ok, alias)
		assert.Equal(t, want, d.Name())
	}
	assert.Equal(t, []string{"mysql", "postgres", "sqlite", "sqlserver"}, Dialects())
}

func TestIntrospectSample(t *testing.T) {
	ds := openSample(t, false, 0)
	schema, err := ds.Introspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SQLite", schema.Dialect)
	require.Len(t, schema.Tables, 3)
	assert.Equal(t, "employees", schema.Tables[0].Name)
	assert.Equal(t, "products", schema.Tables[1].Name)
	assert.Equal(t, "sales", schema.Tables[2].Name)

	emp := schema.Tables[0]
	require.Len(t, emp.Columns, 5)
	assert.Equal(t, Column{Name: "employee_id", Type: "integer", PrimaryKey: true}, emp.Columns[0])
	assert.Equal(t, "real", emp.Columns[3].Type)
	assert.False(t, emp.Columns[1].Nullable)

	sales, ok := schema.Table("SALES")
	require.True(t, ok)
	byName := map[string]Column{}
	for _, c := range sales.Columns {
		byName[c.Name] = c
	}
	require.NotNil(t, byName["product_id"].References)
	assert.Equal(t, ForeignKey{Table: "products", Column: "product_id"}, *byName["product_id"].References)
	assert.Equal(t, ForeignKey{Table: "employees", Column: "employee_id"}, *byName["employee_id"].References)
	assert.True(t, byName["product_id"].Nullable)
	assert.Nil(t, byName["region"].References)
}

func TestIntrospectEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	ds, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "empty.db")}, nil)
	require.NoError(t, err)
	defer ds.Close()
	schema, err := ds.Introspect(ctx)
	require.NoError(t, err)
	assert.Empty(t, schema.Tables)
}

func TestIntrospectImplicitForeignKeyColumn(t *testing.T) {
	ctx := context.Background()
	ds, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "fk.db")}, nil)
	require.NoError(t, err)
	defer ds.Close()
	_, err = ds.DB().ExecContext(ctx, `CREATE TABLE parent (pid INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)
	_, err = ds.DB().ExecContext(ctx, `CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent)`)
	require.NoError(t, err)

	schema, err := ds.Introspect(ctx)
	require.NoError(t, err)
	child, ok := schema.Table("child")
	require.True(t, ok)
	require.NotNil(t, child.Columns[1].References)
	assert.Equal(t, "pid", child.Columns[1].References.Column)
}

func TestSubset(t *testing.T) {
	s := &Schema{Dialect: "SQLite", Tables: []Table{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	sub := s.Subset([]string{"C", "a"})
	require.Len(t, sub.Tables, 2)
	assert.Equal(t, "a", sub.Tables[0].Name)
	assert.Equal(t, "c", sub.Tables[1].Name)
}

func TestExecuteSeededQuery(t *testing.T) {
	ds := openSample(t, true, 0)
	rs, err := ds.Execute(context.Background(),
		"SELECT region, SUM(total_amount) AS revenue, COUNT(*) AS n FROM sales GROUP BY region ORDER BY region;")
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "revenue", "n"}, rs.Columns)
	require.Len(t, rs.Rows, 4)
	assert.Equal(t, "East", rs.Rows[0][0])
	assert.IsType(t, float64(0), rs.Rows[0][1])
	assert.IsType(t, int64(0), rs.Rows[0][2])
	assert.False(t, rs.Truncated)
}

func TestExecuteRowLimit(t *testing.T) {
	ds := openSample(t, true, 10)
	rs, err := ds.Execute(context.Background(), "SELECT * FROM sales")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 10)
	assert.True(t, rs.Truncated)

	rs, err = ds.Execute(context.Background(), "SELECT * FROM employees LIMIT 3")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 3)
	assert.False(t, rs.Truncated)
}

func TestExecuteRejectsWrites(t *testing.T) {
	ds := openSample(t, true, 0)
	ctx := context.Background()
	_, err := ds.Execute(ctx, "DELETE FROM sales")
	require.ErrorIs(t, err, ErrReadOnly)
	_, err = ds.Execute(ctx, "SELECT 1; DROP TABLE sales")
	require.Error(t, err)
	// a trailing backslash does not escape the quote in SQLite
	_, err = ds.Execute(ctx, `SELECT 'a\' ; DELETE FROM sales; SELECT '1'`)
	require.Error(t, err)

	rs, err := ds.Execute(ctx, "SELECT COUNT(*) FROM sales")
	require.NoError(t, err)
	assert.Equal(t, int64(240), rs.Rows[0][0])
}

func TestExecuteEmptyResult(t *testing.T) {
	ds := openSample(t, false, 0)
	rs, err := ds.Execute(context.Background(), "SELECT * FROM employees")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
	assert.Len(t, rs.Columns, 5)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.db")
	require.NoError(t, CreateSample(ctx, path, true))
	require.NoError(t, CreateSample(ctx, path, true))
	ds, err := Open(ctx, Config{Driver: "sqlite", DSN: path}, nil)
	require.NoError(t, err)
	defer ds.Close()
	rs, err := ds.Execute(ctx, "SELECT COUNT(*) FROM employees")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rs.Rows[0][0])
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in     any
		dbType string
		want   any
	}{
		{nil, "", nil},
		{[]byte("hello"), "varchar", "hello"},
		{[]byte("12.50"), "decimal", 12.5},
		{"99.9", "numeric", 99.9},
		{"99.9", "text", "99.9"},
		{int32(7), "int", int64(7)},
		{uint8(3), "tinyint", int64(3)},
		{float32(1.5), "real", 1.5},
		{true, "bool", true},
		{ts, "date", ts},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeValue(tt.in, tt.dbType), "%v (%s)", tt.in, tt.dbType)
	}
}

func TestResultSetHelpers(t *testing.T) {
	rs := &ResultSet{Columns: []string{"a", "b"}, Rows: [][]any{{int64(1), "x"}, {int64(2), "y"}, {int64(3), "z"}}}
	assert.Equal(t, 1, rs.ColumnIndex("b"))
	assert.Equal(t, -1, rs.ColumnIndex("nope"))
	assert.Equal(t, []any{"x", "y", "z"}, rs.Values(1))
	head := rs.Head(2)
	assert.Len(t, head.Rows, 2)
	assert.True(t, head.Truncated)
	assert.Equal(t, 3, rs.Len())
}

func TestImportCSV(t *testing.T) {
	ds := openSample(t, false, 0)
	ctx := context.Background()
	csvData := "City Name,Population,Area km2,Notes\nLyon,522250,47.87,\nNice,348085,71.92,coastal\nLille,236234,34.8,north\n"
	res, err := ds.ImportCSV(ctx, strings.NewReader(csvData), ImportOptions{Table: "Cities"})
	require.NoError(t, err)
	assert.Equal(t, "cities", res.Table)
	assert.Equal(t, []string{"city_name", "population", "area_km2", "notes"}, res.Columns)
	assert.Equal(t, []string{"TEXT", "INTEGER", "REAL", "TEXT"}, res.Types)
	assert.Equal(t, 3, res.Rows)

	rs, err := ds.Execute(ctx, "SELECT city_name, population, notes FROM cities ORDER BY population DESC")
	require.NoError(t, err)
	assert.Equal(t, []any{"Lyon", int64(522250), nil}, rs.Rows[0])

	_, err = ds.ImportCSV(ctx, strings.NewReader(csvData), ImportOptions{Table: "cities"})
	require.Error(t, err, "existing table without Replace")
	_, err = ds.ImportCSV(ctx, strings.NewReader(csvData), ImportOptions{Table: "cities", Replace: true})
	require.NoError(t, err)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, KindInteger, inferKind([]string{"1", "", "42"}))
	assert.Equal(t, KindReal, inferKind([]string{"1", "2.5"}))
	assert.Equal(t, KindText, inferKind([]string{"1", "two"}))
	assert.Equal(t, KindText, inferKind([]string{"", " "}))
}

func TestSanitizeIdent(t *testing.T) {
	assert.Equal(t, "total_amount", sanitizeIdent(" Total Amount ", 0))
	assert.Equal(t, "col_3", sanitizeIdent("???", 2))
	assert.Equal(t, "c_2024", sanitizeIdent("2024", 0))
}
