package analysis

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVOptions controls CSV loading.
type CSVOptions struct {
	// MaxRows limits rows kept; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' and '|'.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// CSVFrame is a loaded CSV file plus bookkeeping for reports.
type CSVFrame struct {
	Frame
	// TotalRows counts every data row, including ones past MaxRows.
	TotalRows int
	Warnings  []string
}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string, opt CSVOptions) (*CSVFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	fr, err := LoadCSV(f, opt)
	if err != nil {
		return nil, err
	}
	fr.Name = filepath.Base(path)
	return fr, nil
}

// LoadCSV reads a header row and data rows. Columns whose non-empty cells all
// parse as numbers become float64; other cells stay strings. Empty cells are nil.
func LoadCSV(r io.Reader, opt CSVOptions) (*CSVFrame, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(string(head))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &CSVFrame{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	out := &CSVFrame{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out.Columns = append(out.Columns, h)
	}
	ncol := len(out.Columns)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var raw [][]string
	ragged := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", out.TotalRows+2, err)
		}
		out.TotalRows++
		if len(rec) != ncol {
			ragged++
		}
		if len(raw) < maxRows {
			raw = append(raw, rec)
		}
	}
	if ragged > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d rows had a field count different from the header", ragged))
	}
	if out.TotalRows > len(raw) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("processed the first %d of %d rows", len(raw), out.TotalRows))
	}

	numeric := make([]bool, ncol)
	for c := 0; c < ncol; c++ {
		numeric[c] = true
		seen := false
		for _, rec := range raw {
			if c >= len(rec) || strings.TrimSpace(rec[c]) == "" {
				continue
			}
			seen = true
			if _, ok := parseNumeric(rec[c], opt); !ok {
				numeric[c] = false
				break
			}
		}
		numeric[c] = numeric[c] && seen
	}
	out.Rows = make([][]any, len(raw))
	for i, rec := range raw {
		row := make([]any, ncol)
		for c := 0; c < ncol && c < len(rec); c++ {
			cell := strings.TrimSpace(rec[c])
			switch {
			case cell == "":
			case numeric[c]:
				row[c], _ = parseNumeric(cell, opt)
			default:
				row[c] = cell
			}
		}
		out.Rows[i] = row
	}
	return out, nil
}

// sniffDelimiter picks the candidate that appears most often in the first line.
func sniffDelimiter(head string) rune {
	line := head
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func parseNumeric(s string, opt CSVOptions) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
