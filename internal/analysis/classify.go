package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred role of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindTemporal    Kind = "temporal"
)

// Classify returns numeric when every non-null value is a Go number, temporal
// when every one is a time.Time or a parseable date string, otherwise
// categorical. All-null columns are categorical.
func Classify(vals []any) Kind {
	nonNull, nums, times := 0, 0, 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		nonNull++
		if _, ok := asFloat(v); ok {
			nums++
			continue
		}
		if _, ok := asTime(v); ok {
			times++
		}
	}
	switch {
	case nonNull == 0:
		return KindCategorical
	case nums == nonNull:
		return KindNumeric
	case times == nonNull:
		return KindTemporal
	}
	return KindCategorical
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// AsFloat exposes the numeric conversion used by the classifier.
func AsFloat(v any) (float64, bool) { return asFloat(v) }

// AsTime exposes the temporal conversion used by the classifier.
func AsTime(v any) (time.Time, bool) { return asTime(v) }

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return parseTimeMaybe(strings.TrimSpace(x))
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "2006-01", "Jan 2, 2006", "2 Jan 2006",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toFloats converts a numeric column to a row-aligned slice with NaN for nulls.
func toFloats(vals []any) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := asFloat(v)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

// FormatValue renders a cell for frequency tables and text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	if f, ok := asFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
