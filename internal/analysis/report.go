package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Report pairs an Analysis with the context needed to render it as Markdown.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Analysis  *Analysis
	Samples   [][]string
	Warnings  []string
}

// NewReport builds a report over f with up to sampleRows example rows.
func NewReport(f *Frame, a *Analysis, sampleRows int) *Report {
	r := &Report{Analysis: a}
	if f == nil {
		return r
	}
	r.Name = f.Name
	r.Rows = len(f.Rows)
	r.Processed = len(f.Rows)
	if sampleRows <= 0 {
		sampleRows = 5
	}
	for i := 0; i < len(f.Rows) && i < sampleRows; i++ {
		row := make([]string, len(f.Columns))
		for c := range f.Columns {
			if c < len(f.Rows[i]) {
				row[c] = FormatValue(f.Rows[i][c])
			}
		}
		r.Samples = append(r.Samples, row)
	}
	return r
}

// NewCSVReport is NewReport plus the row totals and warnings of a CSV load.
func NewCSVReport(f *CSVFrame, sampleRows int) *Report {
	r := NewReport(&f.Frame, Analyze(&f.Frame), sampleRows)
	r.Rows = f.TotalRows
	r.Warnings = append(r.Warnings, f.Warnings...)
	return r
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	a := r.Analysis
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", r.Name)
	}
	if a == nil || a.Error != "" {
		msg := ErrNoData
		if a != nil {
			msg = a.Error
		}
		fmt.Fprintf(&b, "%s\n", msg)
		return b.String()
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		fmt.Fprintf(&b, "Rows: ~%d (processed %d)\n", r.Rows, r.Processed)
	} else {
		fmt.Fprintf(&b, "Rows: %d\n", a.Summary.RowCount)
	}
	fmt.Fprintf(&b, "Columns: %d\n\n", a.Summary.ColumnCount)

	b.WriteString("[SCHEMA]\n")
	for _, col := range a.Summary.Columns {
		name := safeName(col)
		if st, ok := a.NumericalStats[col]; ok {
			fmt.Fprintf(&b, "- %s: numeric (missing %d); mean %.4g, median %.4g, std %.4g, min %.4g, max %.4g, IQR %.4g",
				name, st.Missing, st.Mean, st.Median, st.Std, st.Min, st.Max, st.IQR)
			if st.OutlierCount > 0 {
				fmt.Fprintf(&b, "; outliers: %d", st.OutlierCount)
			}
		} else if st, ok := a.TemporalStats[col]; ok {
			fmt.Fprintf(&b, "- %s: temporal (missing %d); %s to %s (%d days)", name, st.Missing, st.MinDate, st.MaxDate, st.RangeDays)
		} else if st, ok := a.CategoricalStats[col]; ok {
			fmt.Fprintf(&b, "- %s: categorical (missing %d, unique %d)", name, st.Missing, st.UniqueValues)
			if len(st.ValueCounts) > 0 {
				b.WriteString("; top: ")
				for i, kv := range st.ValueCounts {
					if i == 5 {
						break
					}
					if i > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
				}
			}
		}
		b.WriteString("\n")
	}

	if len(a.Correlations) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		pairs := append([]Correlation(nil), a.Correlations...)
		sort.SliceStable(pairs, func(i, j int) bool {
			return math.Abs(pairs[i].Correlation) > math.Abs(pairs[j].Correlation)
		})
		for i, p := range pairs {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "- %s ~ %s: r=%.2f (%s)\n", p.Columns[0], p.Columns[1], p.Correlation, p.Strength)
		}
	}
	if len(a.Insights) > 0 {
		b.WriteString("\n[INSIGHTS]\n")
		for _, s := range a.Insights {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range a.Summary.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c))
		}
		b.WriteString(" |\n| ")
		for i := range a.Summary.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range a.Summary.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
