package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
	"github.com/KaramelBytes/sqlquest-cli/internal/sqlguard"
)

// ResultSet is a fully materialized query result. Values are nil, int64,
// float64, string, bool or time.Time.
type ResultSet struct {
	Columns   []string `json:"columns"`
	Types     []string `json:"types"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Values returns column i across all rows.
func (r *ResultSet) Values(i int) []any {
	out := make([]any, len(r.Rows))
	for k, row := range r.Rows {
		if i < len(row) {
			out[k] = row[i]
		}
	}
	return out
}

// Head returns a shallow copy holding at most n rows.
func (r *ResultSet) Head(n int) *ResultSet {
	if n > len(r.Rows) {
		n = len(r.Rows)
	}
	return &ResultSet{Columns: r.Columns, Types: r.Types, Rows: r.Rows[:n], Truncated: r.Truncated || n < len(r.Rows)}
}

// Execute runs a single read-only statement and reads at most the configured
// row limit. Rows beyond the limit set Truncated.
func (s *DataSource) Execute(ctx context.Context, query string) (*ResultSet, error) {
	q, err := sqlguard.Normalize(query)
	if err != nil {
		return nil, err
	}
	if err := sqlguard.EnsureReadOnly(q); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	types := make([]string, len(cts))
	for i, ct := range cts {
		types[i] = strings.ToLower(ct.DatabaseTypeName())
	}

	rs := &ResultSet{Columns: cols, Types: types, Rows: [][]any{}}
	for rows.Next() {
		if s.rowLimit > 0 && len(rs.Rows) >= s.rowLimit {
			rs.Truncated = true
			break
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i := range raw {
			raw[i] = normalizeValue(raw[i], types[i])
		}
		rs.Rows = append(rs.Rows, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	s.logger.Debug("query executed",
		zap.String("sql", logging.SanitizeQuery(q)),
		zap.Int("rows", len(rs.Rows)),
		zap.Bool("truncated", rs.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return rs, nil
}

func isDecimalType(t string) bool {
	switch t {
	case "decimal", "numeric", "money", "smallmoney", "newdecimal":
		return true
	}
	return false
}

// normalizeValue maps driver values onto the scalar set used by the analyzer.
func normalizeValue(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(string(x), dbType)
	case string:
		return normalizeText(x, dbType)
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint64:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case bool:
		return x
	case time.Time:
		return x
	case fmt.Stringer:
		return normalizeText(x.String(), dbType)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeText(s, dbType string) any {
	if isDecimalType(dbType) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return s
}
