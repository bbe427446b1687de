package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

type sqliteDialect struct{}

func init() { RegisterDialect(sqliteDialect{}) }

func (sqliteDialect) Name() string        { return "sqlite" }
func (sqliteDialect) DisplayName() string { return "SQLite" }
func (sqliteDialect) DriverName() string  { return "sqlite" }

func (sqliteDialect) PrepareDSN(dsn string) (string, error) {
	return utils.ExpandHome(dsn)
}

func (sqliteDialect) QuoteIdent(name string) string { return quoteWith(`"`, `"`, name) }
func (sqliteDialect) Placeholder(n int) string      { return questionPlaceholder(n) }

func (sqliteDialect) TypeName(k ColumnKind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	}
	return "TEXT"
}

func (d sqliteDialect) Introspect(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	if err := scanAll(rows, func() error {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		names = append(names, n)
		return nil
	}); err != nil {
		return nil, err
	}

	b := newTableBuilder()
	type pendingFK struct{ table, from, refTable, refColumn string }
	var fks []pendingFK
	for _, name := range names {
		b.touch(name)
		rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdent(name)))
		if err != nil {
			return nil, fmt.Errorf("table_info %s: %w", name, err)
		}
		if err := scanAll(rows, func() error {
			var (
				cid, notNull, pk int
				colName, colType string
				dflt             sql.NullString
			)
			if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				return err
			}
			b.add(name, Column{Name: colName, Type: colType, PrimaryKey: pk > 0, Nullable: notNull == 0 && pk == 0})
			return nil
		}); err != nil {
			return nil, err
		}

		rows, err = db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.QuoteIdent(name)))
		if err != nil {
			return nil, fmt.Errorf("foreign_key_list %s: %w", name, err)
		}
		if err := scanAll(rows, func() error {
			var (
				id, seq                         int
				refTable, from                  string
				to                              sql.NullString
				onUpdate, onDelete, matchClause string
			)
			if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchClause); err != nil {
				return err
			}
			fks = append(fks, pendingFK{table: name, from: from, refTable: refTable, refColumn: to.String})
			return nil
		}); err != nil {
			return nil, err
		}
	}
	for _, fk := range fks {
		ref := fk.refColumn
		if ref == "" {
			// REFERENCES t without a column list targets t's primary key
			ref = primaryKeyOf(b.cols[fk.refTable])
		}
		b.reference(fk.table, fk.from, fk.refTable, ref)
	}
	return b.tables(), nil
}

func primaryKeyOf(cols []Column) string {
	for _, c := range cols {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}
