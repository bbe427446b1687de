package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
)

type sqlserverDialect struct{}

func init() { RegisterDialect(sqlserverDialect{}) }

func (sqlserverDialect) Name() string                          { return "sqlserver" }
func (sqlserverDialect) DisplayName() string                   { return "SQL Server" }
func (sqlserverDialect) DriverName() string                    { return "sqlserver" }
func (sqlserverDialect) PrepareDSN(dsn string) (string, error) { return dsn, nil }
func (sqlserverDialect) QuoteIdent(name string) string         { return quoteWith("[", "]", name) }
func (sqlserverDialect) Placeholder(n int) string              { return fmt.Sprintf("@p%d", n) }

func (sqlserverDialect) TypeName(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "BIGINT"
	case KindReal:
		return "FLOAT"
	}
	return "NVARCHAR(MAX)"
}

const mssqlColumnsQuery = `
SET NOCOUNT ON;
SELECT t.name, c.name, tp.name, c.is_nullable,
       CAST(CASE WHEN pk.column_id IS NULL THEN 0 ELSE 1 END AS bit)
FROM sys.tables t
JOIN sys.columns c ON c.object_id = t.object_id
JOIN sys.types tp ON tp.user_type_id = c.user_type_id
LEFT JOIN (
    SELECT ic.object_id, ic.column_id
    FROM sys.index_columns ic
    JOIN sys.indexes i ON i.object_id = ic.object_id AND i.index_id = ic.index_id
    WHERE i.is_primary_key = 1
) pk ON pk.object_id = c.object_id AND pk.column_id = c.column_id
WHERE t.is_ms_shipped = 0
  AND SCHEMA_NAME(t.schema_id) = SCHEMA_NAME()
ORDER BY t.name, c.column_id`

const mssqlForeignKeysQuery = `
SET NOCOUNT ON;
SELECT OBJECT_NAME(fkc.parent_object_id),
       COL_NAME(fkc.parent_object_id, fkc.parent_column_id),
       OBJECT_NAME(fkc.referenced_object_id),
       COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id)
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
WHERE SCHEMA_NAME(fk.schema_id) = SCHEMA_NAME()
ORDER BY OBJECT_NAME(fkc.parent_object_id), fkc.constraint_column_id`

func (sqlserverDialect) Introspect(ctx context.Context, db *sql.DB) ([]Table, error) {
	return introspectCatalog(ctx, db, mssqlColumnsQuery, mssqlForeignKeysQuery)
}
