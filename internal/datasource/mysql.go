package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func init() { RegisterDialect(mysqlDialect{}) }

func (mysqlDialect) Name() string        { return "mysql" }
func (mysqlDialect) DisplayName() string { return "MySQL" }
func (mysqlDialect) DriverName() string  { return "mysql" }

// PrepareDSN validates the DSN and turns on parseTime so DATE and DATETIME
// columns arrive as time.Time.
func (mysqlDialect) PrepareDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (mysqlDialect) QuoteIdent(name string) string { return quoteWith("`", "`", name) }
func (mysqlDialect) Placeholder(n int) string      { return questionPlaceholder(n) }

func (mysqlDialect) TypeName(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "BIGINT"
	case KindReal:
		return "DOUBLE"
	}
	return "TEXT"
}

const mysqlColumnsQuery = `
SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE = 'YES', c.COLUMN_KEY = 'PRI'
FROM information_schema.COLUMNS c
JOIN information_schema.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE c.TABLE_SCHEMA = DATABASE()
  AND t.TABLE_TYPE = 'BASE TABLE'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

const mysqlForeignKeysQuery = `
SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE()
  AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY TABLE_NAME, ORDINAL_POSITION`

func (mysqlDialect) Introspect(ctx context.Context, db *sql.DB) ([]Table, error) {
	return introspectCatalog(ctx, db, mysqlColumnsQuery, mysqlForeignKeysQuery)
}
