package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect encapsulates everything backend specific: driver registration name,
// catalog queries, identifier quoting and bind placeholders.
type Dialect interface {
	// Name is the canonical driver key (sqlite, postgres, mysql, sqlserver).
	Name() string
	// DisplayName is used in prompts, e.g. "PostgreSQL".
	DisplayName() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	PrepareDSN(dsn string) (string, error)
	Introspect(ctx context.Context, db *sql.DB) ([]Table, error)
	QuoteIdent(name string) string
	Placeholder(n int) string
	// TypeName maps an inferred import kind to a column type.
	TypeName(kind ColumnKind) string
}

// ColumnKind is the storage class inferred for imported CSV columns.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindReal
)

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
	aliases   = map[string]string{
		"sqlite3":    "sqlite",
		"postgresql": "postgres",
		"pg":         "postgres",
		"pgx":        "postgres",
		"mssql":      "sqlserver",
		"mariadb":    "mysql",
	}
)

// RegisterDialect makes a dialect available to Open. Called from init().
func RegisterDialect(d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[d.Name()] = d
}

// LookupDialect resolves a driver name or alias.
func LookupDialect(name string) (Dialect, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[key]; ok {
		key = a
	}
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	d, ok := dialects[key]
	return d, ok
}

// Dialects lists registered driver keys, sorted.
func Dialects() []string {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func quoteWith(open, close string, name string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

func questionPlaceholder(int) string { return "?" }

func scanAll(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return rows.Err()
}
