package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresDialect struct{}

func init() { RegisterDialect(postgresDialect{}) }

func (postgresDialect) Name() string                          { return "postgres" }
func (postgresDialect) DisplayName() string                   { return "PostgreSQL" }
func (postgresDialect) DriverName() string                    { return "pgx" }
func (postgresDialect) PrepareDSN(dsn string) (string, error) { return dsn, nil }
func (postgresDialect) QuoteIdent(name string) string         { return quoteWith(`"`, `"`, name) }
func (postgresDialect) Placeholder(n int) string              { return fmt.Sprintf("$%d", n) }

func (postgresDialect) TypeName(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "BIGINT"
	case KindReal:
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

const pgColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES',
       EXISTS (
           SELECT 1
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage k
             ON tc.constraint_name = k.constraint_name
            AND tc.table_schema = k.table_schema
            AND tc.table_name = k.table_name
           WHERE tc.constraint_type = 'PRIMARY KEY'
             AND k.table_schema = c.table_schema
             AND k.table_name = c.table_name
             AND k.column_name = c.column_name
       )
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = current_schema()
  AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const pgForeignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
 AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = current_schema()
ORDER BY kcu.table_name, kcu.ordinal_position`

func (postgresDialect) Introspect(ctx context.Context, db *sql.DB) ([]Table, error) {
	return introspectCatalog(ctx, db, pgColumnsQuery, pgForeignKeysQuery)
}

// introspectCatalog runs a columns query yielding
// (table, column, type, nullable, primary key) and a foreign key query yielding
// (table, column, referenced table, referenced column).
func introspectCatalog(ctx context.Context, db *sql.DB, columnsQuery, fkQuery string, args ...any) ([]Table, error) {
	b := newTableBuilder()
	rows, err := db.QueryContext(ctx, columnsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	if err := scanAll(rows, func() error {
		var (
			table string
			c     Column
		)
		if err := rows.Scan(&table, &c.Name, &c.Type, &c.Nullable, &c.PrimaryKey); err != nil {
			return err
		}
		b.add(table, c)
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, fkQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	if err := scanAll(rows, func() error {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return err
		}
		b.reference(table, column, refTable, refColumn)
		return nil
	}); err != nil {
		return nil, err
	}
	return b.tables(), nil
}
