// Package datasource connects to a relational backend, introspects its schema
// and runs read-only queries.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
	"github.com/KaramelBytes/sqlquest-cli/internal/sqlguard"
)

var (
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrReadOnly is returned when a query would modify data.
	ErrReadOnly = sqlguard.ErrNotReadOnly
)

// DefaultRowLimit caps result sets when no limit is configured.
const DefaultRowLimit = 1000

// Schema describes every table of the connected database.
type Schema struct {
	Dialect string  `json:"dialect"`
	Tables  []Table `json:"tables"`
}

// Table is one base table and its columns in ordinal order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column metadata. Type is lower-cased.
type Column struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	PrimaryKey bool        `json:"primary_key,omitempty"`
	Nullable   bool        `json:"nullable"`
	References *ForeignKey `json:"references,omitempty"`
}

// ForeignKey points at the referenced table and column.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Table returns the table with the given name (case-insensitive).
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Subset returns a copy of the schema holding only the named tables.
func (s *Schema) Subset(names []string) *Schema {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[strings.ToLower(n)] = true
	}
	out := &Schema{Dialect: s.Dialect}
	for _, t := range s.Tables {
		if keep[strings.ToLower(t.Name)] {
			out.Tables = append(out.Tables, t)
		}
	}
	return out
}

// Config selects the backend.
type Config struct {
	Driver   string
	DSN      string
	RowLimit int // 0 disables the cap
}

// DataSource wraps a *sql.DB together with its dialect.
type DataSource struct {
	db       *sql.DB
	dialect  Dialect
	rowLimit int
	logger   *zap.Logger
}

// Open resolves the dialect, opens the pool and pings it.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DataSource, error) {
	d, ok := LookupDialect(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnsupportedDriver, cfg.Driver, strings.Join(Dialects(), ", "))
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: empty DSN", d.Name())
	}
	dsn, err := d.PrepareDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger).Named("datasource")
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %s", d.Name(), logging.SanitizeError(err))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %s", d.Name(), logging.SanitizeError(err))
	}
	logger.Debug("connected",
		zap.String("dialect", d.Name()),
		zap.String("dsn", logging.SanitizeDSN(cfg.DSN)))
	return &DataSource{db: db, dialect: d, rowLimit: cfg.RowLimit, logger: logger}, nil
}

// Close releases the pool.
func (s *DataSource) Close() error { return s.db.Close() }

// Dialect returns the backend dialect.
func (s *DataSource) Dialect() Dialect { return s.dialect }

// DB exposes the underlying pool.
func (s *DataSource) DB() *sql.DB { return s.db }

// Introspect reads every table in the default schema. An empty database yields
// an empty schema.
func (s *DataSource) Introspect(ctx context.Context) (*Schema, error) {
	tables, err := s.dialect.Introspect(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", s.dialect.Name(), err)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	s.logger.Debug("introspected schema", zap.Int("tables", len(tables)))
	return &Schema{Dialect: s.dialect.DisplayName(), Tables: tables}, nil
}

// tableBuilder accumulates columns per table while preserving first-seen order.
type tableBuilder struct {
	order []string
	cols  map[string][]Column
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{cols: map[string][]Column{}}
}

func (b *tableBuilder) add(table string, c Column) {
	if _, ok := b.cols[table]; !ok {
		b.order = append(b.order, table)
	}
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	b.cols[table] = append(b.cols[table], c)
}

func (b *tableBuilder) touch(table string) {
	if _, ok := b.cols[table]; !ok {
		b.order = append(b.order, table)
		b.cols[table] = nil
	}
}

// reference attaches a foreign key to table.column; unknown columns are ignored.
func (b *tableBuilder) reference(table, column, refTable, refColumn string) {
	cols := b.cols[table]
	for i := range cols {
		if cols[i].Name == column && cols[i].References == nil {
			cols[i].References = &ForeignKey{Table: refTable, Column: refColumn}
			return
		}
	}
}

func (b *tableBuilder) tables() []Table {
	out := make([]Table, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, Table{Name: name, Columns: b.cols[name]})
	}
	return out
}
