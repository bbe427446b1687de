// Package render formats results for the terminal: boxed and plain tables via
// tablewriter and Markdown via glamour.
package render

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

// MaxCellWidth truncates long cell values in terminal tables.
const MaxCellWidth = 60

// Table writes a bordered table.
func Table(w io.Writer, headers []string, rows [][]string) {
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.AppendBulk(rows)
	t.Render()
}

// PlainTable writes a borderless, column-aligned table, suitable for prompts.
func PlainTable(w io.Writer, headers []string, rows [][]string) {
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetColumnSeparator("  ")
	t.SetCenterSeparator("")
	t.SetRowSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.AppendBulk(rows)
	t.Render()
}

// PlainString is PlainTable rendered into a string.
func PlainString(headers []string, rows [][]string) string {
	var b strings.Builder
	PlainTable(&b, headers, rows)
	return b.String()
}

// ResultRows formats the first max rows of a result set (all when max <= 0).
func ResultRows(rs *datasource.ResultSet, max int) [][]string {
	if rs == nil {
		return nil
	}
	n := len(rs.Rows)
	if max > 0 && max < n {
		n = max
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(rs.Columns))
		for c := range rs.Columns {
			if c < len(rs.Rows[i]) {
				row[c] = Cell(rs.Rows[i][c])
			}
		}
		out[i] = row
	}
	return out
}

// Cell formats one value for display; nil prints as NULL.
func Cell(v any) string {
	if v == nil {
		return "NULL"
	}
	s := strings.ReplaceAll(analysis.FormatValue(v), "\n", " ")
	if r := []rune(s); len(r) > MaxCellWidth {
		s = string(r[:MaxCellWidth-3]) + "..."
	}
	return s
}

// ResultTable writes a preview of the result set as a bordered table.
func ResultTable(w io.Writer, rs *datasource.ResultSet, max int) {
	Table(w, rs.Columns, ResultRows(rs, max))
}
