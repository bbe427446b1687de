package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"plain", "SELECT 1", "SELECT 1", nil},
		{"trailing semicolon", "SELECT * FROM sales;  \n", "SELECT * FROM sales", nil},
		{"semicolon in literal", "SELECT * FROM t WHERE name = 'a;b';", "SELECT * FROM t WHERE name = 'a;b'", nil},
		{"semicolon in comment", "SELECT 1 -- done; really\n", "SELECT 1 -- done; really", nil},
		{"two statements", "SELECT 1; DROP TABLE sales", "", ErrMultipleStatements},
		{"backslash before quote", `SELECT 'a\' ; DELETE FROM sales; SELECT '1'`, "", ErrMultipleStatements},
		{"mysql escaped quote", `SELECT 'a\'' ; DELETE FROM sales; SELECT ''`, "", ErrMultipleStatements},
		{"backslash in path", `SELECT * FROM files WHERE path = 'C:\data\x.csv'`, `SELECT * FROM files WHERE path = 'C:\data\x.csv'`, nil},
		{"empty", "  ;  ", "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureReadOnly(t *testing.T) {
	ok := []string{
		"SELECT name, salary FROM employees",
		"with top AS (SELECT * FROM sales) SELECT region, SUM(total_amount) FROM top GROUP BY region",
		"(SELECT 1) UNION (SELECT 2)",
		"SELECT REPLACE(name, 'a', 'b') FROM products",
		"SELECT updated_at, \"delete\" FROM audit WHERE note = 'drop table x'",
		"-- leading comment\nSELECT 1",
	}
	for _, q := range ok {
		assert.NoError(t, EnsureReadOnly(q), q)
	}
	bad := []string{
		"DELETE FROM sales",
		"UPDATE employees SET salary = 0",
		"WITH x AS (SELECT 1) DELETE FROM sales",
		"SELECT * INTO backup FROM sales",
		"PRAGMA table_info(sales)",
		"SELECT 1; SELECT 2",
		`SELECT 'a\' ; DELETE FROM sales; SELECT '1'`,
		`SELECT name FROM t WHERE note = 'it\'' OR 1=1 INTO OUTFILE '/tmp/x'`,
	}
	for _, q := range bad {
		assert.Error(t, EnsureReadOnly(q), q)
	}
}

func TestFirstKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", FirstKeyword("  select 1"))
	assert.Equal(t, "WITH", FirstKeyword("/* c */ With x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "", FirstKeyword("'quoted'"))
}

func TestStringLiterals(t *testing.T) {
	got := StringLiterals(`SELECT * FROM t WHERE a = 'O''Brien' AND b = 'C:\tmp\' AND c = "ident"`)
	assert.Equal(t, []string{"O'Brien", `C:\tmp\`}, got)
}

func TestCheckLiterals(t *testing.T) {
	assert.NoError(t, CheckLiterals("SELECT * FROM sales WHERE region = 'North' AND sale_date >= '2023-01-01'"))
	err := CheckLiterals("SELECT * FROM employees WHERE name = 'admin''--'")
	assert.ErrorIs(t, err, ErrUnsafeLiteral)
}
