package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ImportOptions controls ImportCSV.
type ImportOptions struct {
	Table     string
	Delimiter rune // defaults to ','
	Replace   bool // drop an existing table first
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Types   []string `json:"types"`
	Rows    int      `json:"rows"`
}

var identCleaner = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// sanitizeIdent turns a CSV header into a safe snake_case identifier.
func sanitizeIdent(s string, idx int) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(identCleaner.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return fmt.Sprintf("col_%d", idx+1)
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "c_" + s
	}
	return s
}

// inferKind picks INTEGER when every non-empty value parses as an integer,
// REAL when every one parses as a float, otherwise TEXT.
func inferKind(values []string) ColumnKind {
	kind := KindInteger
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if kind == KindInteger {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = KindReal
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return KindText
		}
	}
	if !seen {
		return KindText
	}
	return kind
}

func convertCell(v string, k ColumnKind) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch k {
	case KindInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case KindReal:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return v
}

// ImportCSV creates a table from a CSV stream (header row required) and loads
// every record in a single transaction.
func (s *DataSource) ImportCSV(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	table := sanitizeIdent(opts.Table, 0)
	if strings.TrimSpace(opts.Table) == "" {
		return nil, errors.New("import: table name is required")
	}
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("import: csv is empty")
	}
	header := records[0]
	body := records[1:]
	cols := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		name := sanitizeIdent(h, i)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		cols[i] = name
	}
	kinds := make([]ColumnKind, len(cols))
	typeNames := make([]string, len(cols))
	for i := range cols {
		vals := make([]string, 0, len(body))
		for _, rec := range body {
			if i < len(rec) {
				vals = append(vals, rec[i])
			}
		}
		kinds[i] = inferKind(vals)
		typeNames[i] = s.dialect.TypeName(kinds[i])
	}

	d := s.dialect
	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
		defs[i] = quoted[i] + " " + typeNames[i]
		marks[i] = d.Placeholder(i + 1)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if opts.Replace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.QuoteIdent(table)); err != nil {
			return nil, fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range body {
		args := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				args[i] = convertCell(rec[i], kinds[i])
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	s.logger.Info("csv imported", zap.String("table", table), zap.Int("rows", len(body)))
	return &ImportResult{Table: table, Columns: cols, Types: typeNames, Rows: len(body)}, nil
}
