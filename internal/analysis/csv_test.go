package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var csvRows = []string{
	"Group;Score;Amount;Category;Day",
	"A;10,0;1.000,5;alpha;2024-01-01",
	"A;11,0;1.100,0;alpha;2024-01-02",
	"B;9,5;900,0;beta;2024-01-03",
	"B;;1.050,0;alpha;2024-01-04",
	"A;50,0;5.000,0;gamma;2024-01-20",
}

func TestLoadCSVLocaleAndSniff(t *testing.T) {
	fr, err := LoadCSV(strings.NewReader(strings.Join(csvRows, "\n")), CSVOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fr.Columns) != 5 || fr.Columns[1] != "Score" {
		t.Fatalf("columns: %v", fr.Columns)
	}
	if fr.TotalRows != 5 || len(fr.Rows) != 5 {
		t.Fatalf("rows: total=%d kept=%d", fr.TotalRows, len(fr.Rows))
	}
	if v, ok := fr.Rows[0][2].(float64); !ok || v != 1000.5 {
		t.Fatalf("amount: %#v", fr.Rows[0][2])
	}
	if fr.Rows[3][1] != nil {
		t.Fatalf("empty cell must be nil, got %#v", fr.Rows[3][1])
	}
	if fr.Rows[0][0] != "A" {
		t.Fatalf("group: %#v", fr.Rows[0][0])
	}

	a := Analyze(&fr.Frame)
	if got := a.Summary.NumericalColumns; len(got) != 2 {
		t.Fatalf("numeric columns: %v", got)
	}
	if got := a.Summary.DateColumns; len(got) != 1 || got[0] != "Day" {
		t.Fatalf("date columns: %v", got)
	}
	if a.NumericalStats["Score"].Missing != 1 {
		t.Fatalf("score missing: %+v", a.NumericalStats["Score"])
	}
}

func TestLoadCSVMaxRowsWarns(t *testing.T) {
	fr, err := LoadCSV(strings.NewReader("a,b\n1,x\n2,y\n3,z\n"), CSVOptions{MaxRows: 2})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fr.Rows) != 2 || fr.TotalRows != 3 {
		t.Fatalf("rows kept=%d total=%d", len(fr.Rows), fr.TotalRows)
	}
	if len(fr.Warnings) != 1 || !strings.Contains(fr.Warnings[0], "first 2 of 3") {
		t.Fatalf("warnings: %v", fr.Warnings)
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	fr, err := LoadCSV(strings.NewReader(""), CSVOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a := Analyze(&fr.Frame); a.Error != ErrNoData {
		t.Fatalf("want no data, got %+v", a)
	}
}

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a,b,c\n1,2,3":  ',',
		"a;b;c\n1;2;3":  ';',
		"a\tb\tc\n1\t2": '\t',
		"a|b\n1|2":      '|',
		"single":        ',',
	}
	for in, want := range cases {
		if got := sniffDelimiter(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		opt  CSVOptions
		want float64
		ok   bool
	}{
		{"1.5", CSVOptions{}, 1.5, true},
		{"1.234,5", CSVOptions{}, 1234.5, true},
		{"1,234.5", CSVOptions{}, 1234.5, true},
		{"12%", CSVOptions{}, 12, true},
		{"1,000", CSVOptions{DecimalSeparator: '.', ThousandsSeparator: ','}, 1000, true},
		{"2024-01-01", CSVOptions{}, 0, false},
		{"NaN", CSVOptions{}, 0, false},
		{"abc", CSVOptions{}, 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumeric(tc.in, tc.opt)
		if ok != tc.ok || (ok && !approx(got, tc.want)) {
			t.Fatalf("%q: got %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCSVReportMarkdown(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scores.csv")
	if err := os.WriteFile(p, []byte(strings.Join(csvRows, "\n")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fr, err := LoadCSVFile(p, CSVOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	md := NewCSVReport(fr, 3).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]", "File: scores.csv", "Rows: 5", "Columns: 5",
		"[SCHEMA]", "- Score: numeric (missing 1)", "- Category: categorical (missing 0, unique 3)",
		"- Day: temporal (missing 0); 2024-01-01 to 2024-01-20 (19 days)",
		"[CORRELATIONS]", "[INSIGHTS]", "[HEAD AND SAMPLE ROWS]", "| Group | Score | Amount | Category | Day |",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Count(md, "\n| A |")+strings.Count(md, "\n| B |") != 3 {
		t.Fatalf("expected 3 sample rows:\n%s", md)
	}
}

func TestReportMarkdownNoData(t *testing.T) {
	md := NewReport(&Frame{Name: "q"}, Analyze(nil), 5).Markdown()
	if !strings.Contains(md, "No data to analyze") {
		t.Fatalf("markdown: %s", md)
	}
}
