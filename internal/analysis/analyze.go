// Package analysis computes descriptive statistics and rule-based insights for
// query results and CSV files.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is the row-oriented input to Analyze. Cells hold nil, Go numbers,
// string, bool or time.Time.
type Frame struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Analysis is the JSON-serializable result of Analyze. When Error is set all
// other fields are empty and only {"error": ...} is emitted.
type Analysis struct {
	Summary          Summary                     `json:"summary"`
	NumericalStats   map[string]NumericStats     `json:"numerical_stats"`
	CategoricalStats map[string]CategoricalStats `json:"categorical_stats"`
	TemporalStats    map[string]TemporalStats    `json:"temporal_stats"`
	Correlations     []Correlation               `json:"correlations"`
	Insights         []string                    `json:"insights"`
	Error            string                      `json:"error,omitempty"`
}

type Summary struct {
	RowCount           int      `json:"row_count"`
	ColumnCount        int      `json:"column_count"`
	Columns            []string `json:"columns"`
	NumericalColumns   []string `json:"numerical_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
	DateColumns        []string `json:"date_columns"`
}

type NumericStats struct {
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Std          float64 `json:"std"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Missing      int     `json:"missing"`
	Q1           float64 `json:"Q1"`
	Q3           float64 `json:"Q3"`
	IQR          float64 `json:"IQR"`
	OutlierCount int     `json:"outlier_count"`
}

type CategoricalStats struct {
	UniqueValues    int         `json:"unique_values"`
	Missing         int         `json:"missing"`
	MostCommon      *string     `json:"most_common"`
	MostCommonCount int         `json:"most_common_count"`
	ValueCounts     ValueCounts `json:"value_counts"`
}

type TemporalStats struct {
	Missing   int    `json:"missing"`
	MinDate   string `json:"min_date"`
	MaxDate   string `json:"max_date"`
	RangeDays int    `json:"range_days"`
}

type Correlation struct {
	Columns     [2]string `json:"columns"`
	Correlation float64   `json:"correlation"`
	Strength    string    `json:"strength"`
}

// CategoryCount is one entry of a frequency table.
type CategoryCount struct {
	Value string
	Count int
}

// ValueCounts is ordered by count descending, ties by first appearance. It
// marshals as a JSON object that keeps that order.
type ValueCounts []CategoryCount

func (v ValueCounts) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, kv := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		fmt.Fprintf(&b, ":%d", kv.Count)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalJSON collapses an error analysis to {"error": "..."}.
func (a *Analysis) MarshalJSON() ([]byte, error) {
	if a.Error != "" {
		return json.Marshal(map[string]string{"error": a.Error})
	}
	type plain Analysis
	return json.Marshal((*plain)(a))
}

// ErrNoData is the Analysis.Error text for empty input.
const ErrNoData = "No data to analyze"

// Analyze classifies columns, computes per-kind statistics, correlations and
// insight sentences.
func Analyze(f *Frame) *Analysis {
	if f == nil || len(f.Rows) == 0 {
		return &Analysis{Error: ErrNoData}
	}
	n := len(f.Rows)
	a := &Analysis{
		Summary: Summary{
			RowCount:           n,
			ColumnCount:        len(f.Columns),
			Columns:            append([]string(nil), f.Columns...),
			NumericalColumns:   []string{},
			CategoricalColumns: []string{},
			DateColumns:        []string{},
		},
		NumericalStats:   map[string]NumericStats{},
		CategoricalStats: map[string]CategoricalStats{},
		TemporalStats:    map[string]TemporalStats{},
		Correlations:     []Correlation{},
		Insights:         []string{},
	}

	numeric := map[string][]float64{} // aligned with rows, NaN for missing
	for i, name := range f.Columns {
		vals := column(f, i)
		switch Classify(vals) {
		case KindNumeric:
			a.Summary.NumericalColumns = append(a.Summary.NumericalColumns, name)
			aligned := toFloats(vals)
			numeric[name] = aligned
			a.NumericalStats[name] = numericStats(aligned)
		case KindTemporal:
			a.Summary.DateColumns = append(a.Summary.DateColumns, name)
			a.TemporalStats[name] = temporalStats(vals)
		default:
			a.Summary.CategoricalColumns = append(a.Summary.CategoricalColumns, name)
			a.CategoricalStats[name] = categoricalStats(vals)
		}
	}

	cols := a.Summary.NumericalColumns
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r, ok := pearson(numeric[cols[i]], numeric[cols[j]])
			if !ok {
				continue
			}
			r = math.Round(r*100) / 100
			if math.Abs(r) > 0.5 {
				a.Correlations = append(a.Correlations, Correlation{
					Columns:     [2]string{cols[i], cols[j]},
					Correlation: r,
					Strength:    InterpretCorrelation(r),
				})
			}
		}
	}
	a.Insights = insights(a)
	return a
}

func column(f *Frame, i int) []any {
	out := make([]any, len(f.Rows))
	for k, row := range f.Rows {
		if i < len(row) {
			out[k] = row[i]
		}
	}
	return out
}

func numericStats(aligned []float64) NumericStats {
	vals := make([]float64, 0, len(aligned))
	for _, v := range aligned {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	st := NumericStats{Missing: len(aligned) - len(vals)}
	if len(vals) == 0 {
		return st
	}
	var w welford
	for _, v := range vals {
		w.add(v)
	}
	st.Mean, st.Std, st.Min, st.Max = w.mean, w.std(), w.min, w.max

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	st.Median = quantile(sorted, 0.5)
	st.Q1 = quantile(sorted, 0.25)
	st.Q3 = quantile(sorted, 0.75)
	st.IQR = st.Q3 - st.Q1
	lo, hi := st.Q1-1.5*st.IQR, st.Q3+1.5*st.IQR
	for _, v := range vals {
		if v < lo || v > hi {
			st.OutlierCount++
		}
	}
	return st
}

func categoricalStats(vals []any) CategoricalStats {
	st := CategoricalStats{ValueCounts: ValueCounts{}}
	idx := map[string]int{}
	for _, v := range vals {
		if v == nil {
			st.Missing++
			continue
		}
		key := FormatValue(v)
		if i, ok := idx[key]; ok {
			st.ValueCounts[i].Count++
			continue
		}
		idx[key] = len(st.ValueCounts)
		st.ValueCounts = append(st.ValueCounts, CategoryCount{Value: key, Count: 1})
	}
	sort.SliceStable(st.ValueCounts, func(i, j int) bool {
		return st.ValueCounts[i].Count > st.ValueCounts[j].Count
	})
	st.UniqueValues = len(st.ValueCounts)
	if len(st.ValueCounts) > 0 {
		top := st.ValueCounts[0]
		st.MostCommon = &top.Value
		st.MostCommonCount = top.Count
	}
	return st
}

func temporalStats(vals []any) TemporalStats {
	var st TemporalStats
	var minT, maxT time.Time
	seen := false
	for _, v := range vals {
		t, ok := asTime(v)
		if !ok {
			st.Missing++
			continue
		}
		if !seen || t.Before(minT) {
			minT = t
		}
		if !seen || t.After(maxT) {
			maxT = t
		}
		seen = true
	}
	if seen {
		st.MinDate = minT.Format("2006-01-02")
		st.MaxDate = maxT.Format("2006-01-02")
		st.RangeDays = int(maxT.Sub(minT).Hours() / 24)
	}
	return st
}

// InterpretCorrelation labels a coefficient with a strength band and direction.
func InterpretCorrelation(r float64) string {
	abs := math.Abs(r)
	var strength string
	switch {
	case abs > 0.8:
		strength = "very strong"
	case abs > 0.6:
		strength = "strong"
	case abs > 0.4:
		strength = "moderate"
	case abs > 0.2:
		strength = "weak"
	default:
		strength = "very weak"
	}
	direction := "negative"
	if r > 0 {
		direction = "positive"
	}
	return strength + " " + direction
}

func insights(a *Analysis) []string {
	out := []string{}
	rows := float64(a.Summary.RowCount)
	for _, col := range a.Summary.NumericalColumns {
		st := a.NumericalStats[col]
		ratio := 0.0
		if st.Median != 0 {
			ratio = st.Mean / st.Median
		}
		if math.Abs(ratio-1) > 0.5 {
			dir := "left"
			if ratio > 1 {
				dir = "right"
			}
			out = append(out, fmt.Sprintf("The distribution of %s is highly skewed to the %s.", col, dir))
		}
		if st.OutlierCount > 0 {
			pct := float64(st.OutlierCount) / rows * 100
			if pct > 5 {
				out = append(out, fmt.Sprintf("%s has %d outliers (%.1f%% of data).", col, st.OutlierCount, pct))
			}
		}
	}
	for _, col := range a.Summary.CategoricalColumns {
		st := a.CategoricalStats[col]
		pct := float64(st.MostCommonCount) / rows * 100
		if pct > 70 && st.UniqueValues > 1 && st.MostCommon != nil {
			out = append(out, fmt.Sprintf("'%s' dominates the %s category at %.1f%%.", *st.MostCommon, col, pct))
		}
	}
	for _, c := range a.Correlations {
		if math.Abs(c.Correlation) > 0.7 {
			out = append(out, fmt.Sprintf("There is a %s correlation (%.2f) between %s and %s.", c.Strength, c.Correlation, c.Columns[0], c.Columns[1]))
		}
	}
	for _, col := range a.Summary.DateColumns {
		d := a.TemporalStats[col].RangeDays
		switch {
		case d == 0:
		case d > 365:
			out = append(out, fmt.Sprintf("The data spans %d years and %d days.", d/365, d%365))
		case d > 30:
			out = append(out, fmt.Sprintf("The data spans %d months and %d days.", d/30, d%30))
		default:
			out = append(out, fmt.Sprintf("The data spans %d days.", d))
		}
	}
	return out
}
